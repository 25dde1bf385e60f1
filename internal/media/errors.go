package media

import "errors"

var (
	ErrEmptyBinary       = errors.New("picture binary is empty")
	ErrBinaryTooLarge    = errors.New("picture binary exceeds the maximum upload size")
	ErrImageTooLarge     = errors.New("picture dimensions exceed the configured maximum")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPictureNotFound   = errors.New("picture not found")
)
