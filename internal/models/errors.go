package models

import "errors"

var (
	// ErrNotFound is returned by repositories when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a create violates a uniqueness constraint
	// (duplicate join, duplicate response, taken username or room code).
	// Handlers treat it as the domain outcome "already exists", not a failure.
	ErrDuplicate = errors.New("already exists")
)
