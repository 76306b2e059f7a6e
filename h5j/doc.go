// Package h5j loads H5J files into multi-channel pixel volumes.
//
// An H5J file is an HDF5 container holding one compressed video stream per
// imaging channel under /Channels, plus voxel spacing, unit and padding
// attributes. Load decodes every channel, strips the container padding from
// each frame and assembles the planes into a VolumeStack indexed by channel
// and z.
//
// Basic usage:
//
//	vol, err := h5j.Load(ctx, "brain.h5j", h5j.WithTimeout(time.Minute))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	plane := vol.Plane(0, 10)
//
// Errors from the container are reported as *ContainerError and match
// ErrContainer; codec failures are *DecodeError and match ErrDecode.
package h5j
