package bootsel

import (
	"fmt"
	"os"
)

// SRAMBase is the start of on-chip working memory on the target.
const SRAMBase uint32 = 0x20000000

// Image is an alternate firmware image embedded in the resident one.
type Image struct {
	Name string
	// Base is the address the image is linked to run at.
	Base uint32
	Data []byte
}

// Entry returns the jump target. Bit 0 is set to enter the image in
// Thumb state, as required for an indirect branch on the target.
func (img *Image) Entry() uint32 {
	return img.Base + 1
}

// Len returns the image size in bytes.
func (img *Image) Len() int {
	return len(img.Data)
}

// Validate checks the image can be placed in size bytes at base.
func (img *Image) Validate(base uint32, size int) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}
	if img.Base != base {
		return fmt.Errorf("%w: image %#08x, memory %#08x", ErrBaseMismatch, img.Base, base)
	}
	if len(img.Data) > size {
		return fmt.Errorf("%w: %d > %d bytes", ErrImageTooLarge, len(img.Data), size)
	}
	return nil
}

// LoadImage reads an image from a file.
func LoadImage(path string, base uint32) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Image{Name: path, Base: base, Data: data}, nil
}
