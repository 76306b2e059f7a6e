package decoder

import "errors"

var (
	ErrNoVideoStream = errors.New("decoder: no video stream")
	ErrNoFrames      = errors.New("decoder: stream produced no frames")
	ErrInvalidState  = errors.New("decoder: invalid state")
	ErrGeometry      = errors.New("decoder: picture does not match stream")
)
