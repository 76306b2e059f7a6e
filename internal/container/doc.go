// Package container reads H5J containers.
//
// An H5J file is an HDF5 file with one opaque dataset per imaging channel
// under the /Channels group. Each dataset holds an independently compressed
// video stream. Optional attributes describe the volume:
//
//   - "/" voxel_size: three float64 spacings (x, y, z)
//   - "/" unit: spatial unit string
//   - "/Channels" pad_right, pad_bottom: columns and rows added by the encoder
//
// # Basic Usage
//
//	s, err := container.Open("sample.h5j")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	names, err := s.ChannelNames()
//	data, err := s.ReadChannelBytes(names[0])
//	md, err := s.Metadata()
//
// Channel names are returned in storage order, which is the channel
// multiplex order of the volume.
package container
