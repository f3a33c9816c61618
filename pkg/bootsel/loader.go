package bootsel

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/golang/glog"
)

// ChainLoader transfers execution to an image.
//
// On success ChainLoad never returns. A non-nil error means the
// transfer could not be initiated and the caller still owns the
// device. Returning nil is an invariant violation: the caller's
// state can no longer be trusted.
type ChainLoader interface {
	ChainLoad(*Image) error
}

// RAMLoader copies the image into working memory and jumps to it.
type RAMLoader struct {
	// Memory is the working memory, starting at Base.
	Memory []byte
	Base   uint32
	// Jump transfers control to entry. It must not return.
	Jump func(entry uint32)
}

// ChainLoad implements ChainLoader.
func (l *RAMLoader) ChainLoad(img *Image) error {
	if err := img.Validate(l.Base, len(l.Memory)); err != nil {
		return err
	}
	copy(l.Memory, img.Data)
	glog.Infof("chain-load %q: %d bytes at %#08x, entry %#08x", img.Name, img.Len(), l.Base, img.Entry())
	glog.Flush()
	l.Jump(img.Entry())
	return nil
}

// ExecLoader replaces the current process with the image, the hosted
// equivalent of copy-and-jump: the image is written to an executable
// file and exec'd with the same pid.
type ExecLoader struct {
	// Dir receives the image file, os.TempDir() if empty.
	Dir  string
	Args []string
	Env  []string

	// exec is syscall.Exec unless replaced in tests.
	exec func(argv0 string, argv []string, envv []string) error
}

// ChainLoad implements ChainLoader.
func (l *ExecLoader) ChainLoad(img *Image) error {
	if img.Len() == 0 {
		return ErrEmptyImage
	}
	dir := l.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "vterm-image-*")
	if err != nil {
		return err
	}
	path := f.Name()
	_, err = f.Write(img.Data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(path, 0755)
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("write image: %w", err)
	}

	argv := append([]string{filepath.Base(path)}, l.Args...)
	env := l.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(env, fmt.Sprintf("VTERM_IMAGE_ENTRY=%#08x", img.Entry()))
	exec := l.exec
	if exec == nil {
		exec = syscall.Exec
	}
	glog.Infof("chain-load %q: exec %s", img.Name, path)
	glog.Flush()
	if err = exec(path, argv, env); err != nil {
		os.Remove(path)
		return fmt.Errorf("exec image: %w", err)
	}
	return nil
}
