package bootsel

import "errors"

var (
	// ErrEmptyImage indicates an image without content.
	ErrEmptyImage = errors.New("empty firmware image")
	// ErrImageTooLarge indicates an image which doesn't fit working memory.
	ErrImageTooLarge = errors.New("firmware image exceeds working memory")
	// ErrBaseMismatch indicates an image linked for another load address.
	ErrBaseMismatch = errors.New("firmware image base address mismatch")
	// ErrNoImage indicates the alternate image was selected but the
	// selector has no image or no loader.
	ErrNoImage = errors.New("no alternate image to chain-load")
	// ErrReturned is the panic value when control comes back from an
	// image which was supposed to take over.
	ErrReturned = errors.New("returned from chain-loaded image")
)
