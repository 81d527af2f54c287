package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrFolderMissing  = errors.New("adr folder does not exist")
	ErrUnknownPackage = errors.New("unknown package")
	ErrSlugExhausted  = errors.New("no free slug after retries")
)
