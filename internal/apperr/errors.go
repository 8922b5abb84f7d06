package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRoot     = errors.New("invalid root")
	ErrTransientIO     = errors.New("transient io")
	ErrArchiveFormat   = errors.New("archive format")
	ErrInvalidArgument = errors.New("invalid argument")
)
