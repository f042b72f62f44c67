package storage

import "errors"

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageInit   = errors.New("storage initialization failed")
	ErrFileOperation = errors.New("file operation failed")
	ErrClosed        = errors.New("storage closed")
)
