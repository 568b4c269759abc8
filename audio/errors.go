package audio

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrBufferSizeMismatch   = errors.New("buffer size mismatch")
	ErrUnknownNode          = errors.New("unknown node")
)
