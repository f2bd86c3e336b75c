package storage

import "errors"

var ErrNotFound = errors.New("OBJECT_NOT_FOUND")
