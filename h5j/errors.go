package h5j

import (
	"errors"
	"fmt"
)

var (
	// ErrContainer matches every *ContainerError.
	ErrContainer = errors.New("h5j: container error")

	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("h5j: decode error")

	// ErrUnsupportedFormat is returned for bit depths other than 8 or 16
	// and for channels whose geometry differs from the first channel.
	ErrUnsupportedFormat = errors.New("h5j: unsupported format")

	// ErrTimeout is returned when assembling a channel exceeds the
	// configured timeout.
	ErrTimeout = errors.New("h5j: assembly timed out")

	// ErrNoChannels is returned for a container with an empty channel
	// group.
	ErrNoChannels = errors.New("h5j: container has no channels")
)

// ContainerError reports a failure to read the container.
type ContainerError struct {
	Path string // container file path
	Name string // channel or object, if any
	Err  error
}

func (e *ContainerError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("h5j: container %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("h5j: container %s: %s: %v", e.Path, e.Name, e.Err)
}

func (e *ContainerError) Unwrap() []error {
	return []error{ErrContainer, e.Err}
}

// DecodeError reports a failure to decode the stream of a channel.
type DecodeError struct {
	Channel string
	Ordinal int
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("h5j: decoding channel %d (%s): %v", e.Ordinal, e.Channel, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}
