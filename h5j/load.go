package h5j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-h5j/internal/container"
	"github.com/robert-malhotra/go-h5j/internal/decoder"
	"github.com/robert-malhotra/go-h5j/internal/frames"
)

// MaxCompositeChannels is the number of 8-bit channels a CompositeStack can
// pack into 32 bits.
const MaxCompositeChannels = 4

// buildHook runs in each build worker before it depads a frame. Tests set it
// to perturb completion order.
var buildHook func(ctx context.Context, c, z int)

// Load opens the H5J file at path and assembles all of its channels.
func Load(ctx context.Context, path string, opts ...Option) (*VolumeStack, error) {
	store, err := container.Open(path)
	if err != nil {
		return nil, &ContainerError{Path: path, Err: err}
	}
	defer store.Close()
	return LoadStore(ctx, store, opts...)
}

// LoadStore assembles the channels of an open container. The store is left
// open. container.Store is internal to this module, so LoadStore serves the
// tools under cmd; other callers use Load.
func LoadStore(ctx context.Context, store *container.Store, opts ...Option) (*VolumeStack, error) {
	a := newAssembler(store, newConfig(opts))
	return a.load(ctx)
}

// LoadComposite opens the H5J file at path and packs its 8-bit channels
// into a CompositeStack.
func LoadComposite(ctx context.Context, path string, opts ...Option) (*CompositeStack, error) {
	store, err := container.Open(path)
	if err != nil {
		return nil, &ContainerError{Path: path, Err: err}
	}
	defer store.Close()

	a := newAssembler(store, newConfig(opts))
	return a.loadComposite(ctx)
}

// planeKey identifies a plane by channel ordinal and z index.
type planeKey struct {
	c int
	z int
}

type planeEntry struct {
	key   planeKey
	plane []byte
}

// assembler runs one load.
type assembler struct {
	cfg   Config
	store *container.Store
	log   *slog.Logger
	level slog.Level

	names []string
	md    container.Metadata
}

func newAssembler(store *container.Store, cfg Config) *assembler {
	a := &assembler{
		cfg:   cfg,
		store: store,
		log:   cfg.Logger.With("load_id", uuid.NewString(), "file", store.Path()),
		level: slog.LevelDebug,
	}
	if cfg.Verbose {
		a.level = slog.LevelInfo
	}
	return a
}

func (a *assembler) containerError(name string, err error) error {
	return &ContainerError{Path: a.store.Path(), Name: name, Err: err}
}

func (a *assembler) progress(p Progress) {
	if a.cfg.Progress != nil {
		p.Channels = len(a.names)
		a.cfg.Progress(p)
	}
}

// open reads the channel names and volume attributes.
func (a *assembler) open() error {
	names, err := a.store.ChannelNames()
	if err != nil {
		return a.containerError(container.ChannelsPath, err)
	}
	if len(names) == 0 {
		return a.containerError(container.ChannelsPath, ErrNoChannels)
	}
	md, err := a.store.Metadata()
	if err != nil {
		return a.containerError("", err)
	}
	a.names = names
	a.md = md

	a.log.Info("loading",
		"channels", len(names),
		"pad_right", md.PadRight,
		"pad_bottom", md.PadBottom,
		"unit", md.Unit)
	return nil
}

// decode decodes channel c.
func (a *assembler) decode(ctx context.Context, c int) (*frames.Store, error) {
	name := a.names[c]
	data, err := a.store.ReadChannelBytes(name)
	if err != nil {
		return nil, a.containerError(name, err)
	}
	a.log.Log(ctx, a.level, "decoding channel", "channel", c, "name", name, "bytes", len(data))

	fs, err := decoder.DecodeAll(ctx, a.cfg.Engine, data,
		decoder.WithThreads(a.cfg.Threads),
		decoder.WithLogger(a.log),
		decoder.WithVerbose(a.cfg.Verbose),
		decoder.WithChannel(c),
		decoder.WithFrameCallback(func(n int) {
			a.progress(Progress{Stage: StageDecode, Channel: c, Done: n})
		}))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DecodeError{Channel: name, Ordinal: c, Err: err}
	}
	fs.SetMetadata(a.md)
	return fs, nil
}

// checkFirst validates the geometry learned from the first channel.
func checkFirst(fs *frames.Store) error {
	if fs.BytesPerPixel != 1 && fs.BytesPerPixel != 2 {
		return fmt.Errorf("%w: %d bytes per pixel", ErrUnsupportedFormat, fs.BytesPerPixel)
	}
	if fs.UnpaddedWidth() <= 0 || fs.UnpaddedHeight() <= 0 {
		return fmt.Errorf("%w: padding %d,%d leaves no pixels of %dx%d", ErrUnsupportedFormat,
			fs.PadRight, fs.PadBottom, fs.Width, fs.Height)
	}
	return nil
}

// checkMatches validates channel c against the first channel.
func checkMatches(first, fs *frames.Store, firstFrames, c int) error {
	switch {
	case fs.BytesPerPixel != first.BytesPerPixel:
		return fmt.Errorf("%w: channel %d has %d bytes per pixel, channel 0 has %d",
			ErrUnsupportedFormat, c, fs.BytesPerPixel, first.BytesPerPixel)
	case fs.Width != first.Width || fs.Height != first.Height:
		return fmt.Errorf("%w: channel %d is %dx%d, channel 0 is %dx%d",
			ErrUnsupportedFormat, c, fs.Width, fs.Height, first.Width, first.Height)
	case fs.Len() != firstFrames:
		return fmt.Errorf("%w: channel %d has %d frames, channel 0 has %d",
			ErrUnsupportedFormat, c, fs.Len(), firstFrames)
	}
	return nil
}

func (a *assembler) load(ctx context.Context) (*VolumeStack, error) {
	if err := a.open(); err != nil {
		return nil, err
	}

	var (
		vol   *VolumeStack
		first *frames.Store
	)
	for c := range a.names {
		fs, err := a.decode(ctx, c)
		if err != nil {
			return nil, err
		}

		if c == 0 {
			if err := checkFirst(fs); err != nil {
				fs.Release()
				return nil, err
			}
			vol = newVolume(fs.UnpaddedWidth(), fs.UnpaddedHeight(), fs.BytesPerPixel, len(a.names), fs.Len())
			vol.Spacing = fs.Spacing
			vol.Unit = fs.Unit
			first = &frames.Store{Width: fs.Width, Height: fs.Height, BytesPerPixel: fs.BytesPerPixel}
		} else if err := checkMatches(first, fs, vol.Frames, c); err != nil {
			fs.Release()
			return nil, err
		}

		err = a.assemble(ctx, vol, c, fs)
		fs.Release()
		if err != nil {
			return nil, err
		}
	}

	vol.calibrate()
	report, err := a.report()
	if err != nil {
		return nil, err
	}
	vol.AttributeReport = report

	a.log.Info("loaded",
		"width", vol.Width,
		"height", vol.Height,
		"bytes_per_pixel", vol.BytesPerPixel,
		"channels", vol.Channels,
		"frames", vol.Frames)
	return vol, nil
}

// assemble depads the frames of channel c on a bounded pool of build
// workers and stores the planes into vol from a single apply goroutine.
func (a *assembler) assemble(ctx context.Context, vol *VolumeStack, c int, fs *frames.Store) error {
	tctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	queue := make(chan planeEntry, a.cfg.BuildWorkers)
	applied := make(chan int, 1)
	go func() {
		n := 0
		for e := range queue {
			vol.planes[e.key.c*vol.Frames+e.key.z] = e.plane
			n++
			a.progress(Progress{Stage: StageAssemble, Channel: c, Done: n, Total: vol.Frames})
		}
		applied <- n
	}()

	var chMax atomic.Uint32
	g, gctx := errgroup.WithContext(tctx)
	g.SetLimit(a.cfg.BuildWorkers)
	for z, f := range fs.Frames() {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if buildHook != nil {
				buildHook(gctx, c, z)
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			plane := fs.Depad(f)
			storeMax(&chMax, maxSample(plane, vol.BytesPerPixel))
			select {
			case queue <- planeEntry{key: planeKey{c: c, z: z}, plane: plane}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(queue)
	n := <-applied

	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			a.log.Error("assembly timed out", "channel", c, "timeout", a.cfg.Timeout, "applied", n)
			return fmt.Errorf("%w: channel %d after %v", ErrTimeout, c, a.cfg.Timeout)
		}
		return err
	}
	if n != vol.Frames {
		return fmt.Errorf("h5j: channel %d assembled %d of %d planes", c, n, vol.Frames)
	}

	vol.MaxValues[c] = float64(chMax.Load())
	a.log.Log(ctx, a.level, "assembled channel", "channel", c, "max", vol.MaxValues[c])
	return nil
}

// storeMax raises m to v.
func storeMax(m *atomic.Uint32, v uint32) {
	for {
		cur := m.Load()
		if v <= cur || m.CompareAndSwap(cur, v) {
			return
		}
	}
}

// report joins the attribute reports of the root and the channel group.
func (a *assembler) report() (string, error) {
	root, err := a.store.DescribeAllAttributes(container.RootPath)
	if err != nil {
		return "", a.containerError(container.RootPath, err)
	}
	channels, err := a.store.DescribeAllAttributes(container.ChannelsPath)
	if err != nil {
		return "", a.containerError(container.ChannelsPath, err)
	}
	return root + channels, nil
}

func (a *assembler) loadComposite(ctx context.Context) (*CompositeStack, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	if len(a.names) > MaxCompositeChannels {
		return nil, fmt.Errorf("%w: %d channels, composite holds at most %d",
			ErrUnsupportedFormat, len(a.names), MaxCompositeChannels)
	}

	var merged *frames.Store
	defer func() {
		if merged != nil {
			merged.Release()
		}
	}()
	for c := range a.names {
		fs, err := a.decode(ctx, c)
		if err != nil {
			return nil, err
		}
		if fs.BytesPerPixel != 1 {
			fs.Release()
			return nil, fmt.Errorf("%w: composite needs 8-bit channels, channel %d has %d bytes per pixel",
				ErrUnsupportedFormat, c, fs.BytesPerPixel)
		}
		if merged == nil {
			if err := checkFirst(fs); err != nil {
				fs.Release()
				return nil, err
			}
			merged = fs
			continue
		}
		err = merged.Merge(fs)
		fs.Release()
		if err != nil {
			return nil, fmt.Errorf("%w: channel %d: %w", ErrUnsupportedFormat, c, err)
		}
	}

	n := merged.Channels
	frameCount := merged.Len() / n
	cs := &CompositeStack{
		Width:    merged.UnpaddedWidth(),
		Height:   merged.UnpaddedHeight(),
		Channels: n,
		Frames:   frameCount,
		Spacing:  merged.Spacing,
		Unit:     merged.Unit,
		planes:   make([][]uint32, frameCount),
	}

	tctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(tctx)
	g.SetLimit(a.cfg.BuildWorkers)
	for z := range frameCount {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := make([]uint32, cs.Width*cs.Height)
			for c := range n {
				plane := merged.Depad(merged.Frame(c*frameCount + z))
				shift := uint((n - c - 1) * 8)
				for i, v := range plane {
					out[i] |= uint32(v) << shift
				}
			}
			cs.planes[z] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: composite after %v", ErrTimeout, a.cfg.Timeout)
		}
		return nil, err
	}

	report, err := a.report()
	if err != nil {
		return nil, err
	}
	cs.AttributeReport = report
	a.log.Info("loaded composite", "channels", n, "frames", frameCount, "width", cs.Width, "height", cs.Height)
	return cs, nil
}
