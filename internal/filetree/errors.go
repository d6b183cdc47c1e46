package filetree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no node exists at the path, or a file was
	// expected and the path names a folder.
	ErrNotFound = errors.New("not found")
	// ErrNotAFolder is returned when listing children of a file.
	ErrNotAFolder = errors.New("not a folder")
	// ErrPathConflict is returned when a write targets a folder or passes
	// through an existing file.
	ErrPathConflict = errors.New("path conflict")
	// ErrInvalidPath is returned for empty paths, ".." segments, and mutations of the root.
	ErrInvalidPath = errors.New("invalid path")
)

// PathError records the operation and path that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
