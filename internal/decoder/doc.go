// Package decoder turns the compressed video stream of one channel into an
// ordered frames.Store.
//
// A Decoder moves through the states Created, Opened, Decoding, Flushing and
// Closed. Open locates the first video stream and negotiates the output
// format: 8-bit streams are decoded to packed RGB and reduced to their blue
// component, deeper streams to little-endian 16-bit gray. Decode feeds every
// packet of that stream to the codec, flushes it at end of input and pads a
// short stream with copies of its last frame up to the declared count.
//
// Basic usage:
//
//	d := decoder.New(engine, blob, decoder.WithThreads(4))
//	defer d.Close()
//	if err := d.Open(); err != nil {
//	    return err
//	}
//	store, err := d.Decode(ctx)
package decoder
