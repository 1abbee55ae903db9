package store

import "errors"

var (
	ErrAlreadyLocked    = errors.New("lock record already exists")
	ErrNotLocked        = errors.New("no lock record exists")
	ErrPermissionDenied = errors.New("owner or token does not match the lock record")
	ErrCorrupted        = errors.New("lock record is corrupted")
)
