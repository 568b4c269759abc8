package core

import "errors"

var (
	ErrShutdownPending = errors.New("shutdown signal already pending")
	ErrShutdownClosed  = errors.New("shutdown signal closed")
)
