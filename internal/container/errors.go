package container

import (
	"errors"
	"fmt"
)

var (
	// ErrOpen is returned when the file cannot be opened as an HDF5 container.
	ErrOpen = errors.New("container: cannot open")

	// ErrNoChannelGroup is returned when the /Channels group is missing.
	ErrNoChannelGroup = errors.New("container: no channel group")

	// ErrChannelNotFound is returned for an unknown channel name.
	ErrChannelNotFound = errors.New("container: channel not found")

	// ErrChannelType is returned when a channel dataset does not hold bytes.
	ErrChannelType = errors.New("container: channel is not a byte stream")

	// ErrObjectNotFound is returned when an attribute path names no object.
	ErrObjectNotFound = errors.New("container: object not found")

	// ErrClosed is returned by operations on a closed Store.
	ErrClosed = errors.New("container: store is closed")
)

// Error describes a failed container operation together with the file and
// object it concerned.
type Error struct {
	Op   string // operation, e.g. "open" or "read channel"
	File string // container file path
	Name string // object or channel name, if any
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("%s %s[%s]: %v", e.Op, e.File, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
