//go:build linux

package joypad

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"syscall"
	"unsafe"
)

const (
	iocGBUTTONS uint = 0x80016a12
	iocGNAME    uint = 0x80ff6a13

	evINIT uint8 = 0x80
	evBTN  uint8 = 0x01

	eventSize = 8
)

type device struct {
	file        *os.File
	name        string
	buttonCount uint8
}

// Open opens a joystick device such as /dev/input/js0.
func Open(path string) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	d := &device{file: f}
	errno := d.ioctl(iocGBUTTONS, unsafe.Pointer(&d.buttonCount))
	if errno == 0 {
		var buf [256]byte
		if errno = d.ioctl(iocGNAME, unsafe.Pointer(&buf)); errno == 0 {
			if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
				d.name = string(buf[:pos])
			} else {
				d.name = string(buf[:])
			}
		}
	}
	if errno != 0 {
		f.Close()
		return nil, errno
	}
	return d, nil
}

func (d *device) Close() error {
	return d.file.Close()
}

func (d *device) Name() string {
	return d.name
}

func (d *device) ButtonCount() int {
	return int(d.buttonCount)
}

func (d *device) ReadEvent() (Event, error) {
	var buf [eventSize]byte
	for {
		if _, err := io.ReadFull(d.file, buf[:]); err != nil {
			return Event{}, err
		}
		if ev, ok := decodeEvent(buf[:]); ok {
			return ev, nil
		}
	}
}

// decodeEvent parses a struct js_event: time u32, value s16, type u8,
// number u8. Only button events are returned.
func decodeEvent(buf []byte) (Event, bool) {
	value := int16(binary.LittleEndian.Uint16(buf[4:]))
	typ, number := buf[6], buf[7]
	if typ&evBTN == 0 {
		return Event{}, false
	}
	return Event{Button: int(number), Pressed: value != 0, Init: typ&evINIT != 0}, true
}

func (d *device) ioctl(req uint, ptr unsafe.Pointer) syscall.Errno {
	_, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(d.file.Fd()), uintptr(req), uintptr(ptr))
	return err
}
