// Command h5jinfo prints the structure and attributes of an H5J file and
// summarizes the volume it decodes to.
//
// Usage:
//
//	h5jinfo [flags] <file.h5j>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/robert-malhotra/go-h5j/h5j"
	"github.com/robert-malhotra/go-h5j/internal/codec/ffmpeg"
	"github.com/robert-malhotra/go-h5j/internal/container"
)

func main() {
	var (
		tree     = flag.Bool("tree", true, "print the container hierarchy")
		decode   = flag.Bool("decode", true, "decode the channels and summarize the volume")
		verbose  = flag.Bool("v", false, "verbose logging")
		workers  = flag.Int("workers", h5j.DefaultBuildWorkers, "frame build workers per channel")
		threads  = flag.Int("threads", 0, "codec threads (0 = number of CPUs)")
		timeout  = flag.Duration("timeout", h5j.DefaultTimeout, "per-channel assembly timeout")
		exportTo = flag.String("export", "", "write every plane as a TIFF file into this directory")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file.h5j>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, flag.Arg(0), options{
		tree:     *tree,
		decode:   *decode,
		exportTo: *exportTo,
		load: []h5j.Option{
			h5j.WithLogger(logger),
			h5j.WithVerbose(*verbose),
			h5j.WithBuildWorkers(*workers),
			h5j.WithThreads(*threads),
			h5j.WithTimeout(*timeout),
			h5j.WithEngine(ffmpeg.New(ffmpeg.WithLogger(logger))),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	tree     bool
	decode   bool
	exportTo string
	load     []h5j.Option
}

func run(ctx context.Context, path string, opts options) error {
	store, err := container.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("=== %s ===\n\n", path)

	if opts.tree {
		if err := printTree(store); err != nil {
			return err
		}
		fmt.Println()
	}

	names, err := store.ChannelNames()
	if err != nil {
		return err
	}
	md, err := store.Metadata()
	if err != nil {
		return err
	}
	fmt.Printf("Channels: %s\n", strings.Join(names, ", "))
	fmt.Printf("Voxel size: %v %s\n", md.Spacing, md.Unit)
	fmt.Printf("Padding: right %d, bottom %d\n\n", md.PadRight, md.PadBottom)

	if !opts.decode {
		for _, p := range []string{container.RootPath, container.ChannelsPath} {
			report, err := store.DescribeAllAttributes(p)
			if err != nil {
				return err
			}
			fmt.Printf("Attributes of %s:\n%s\n", p, report)
		}
		return nil
	}

	vol, err := h5j.LoadStore(ctx, store, opts.load...)
	if err != nil {
		var derr *h5j.DecodeError
		if errors.As(err, &derr) && errors.Is(err, ffmpeg.ErrNotFound) {
			return fmt.Errorf("%w (install ffmpeg or run with -decode=false)", err)
		}
		return err
	}
	printVolume(vol)

	if opts.exportTo != "" {
		n, err := exportPlanes(vol, opts.exportTo)
		if err != nil {
			return err
		}
		fmt.Printf("\nWrote %d planes to %s\n", n, opts.exportTo)
	}
	return nil
}

func printTree(store *container.Store) error {
	return store.Tree(func(n container.Node) error {
		depth := strings.Count(strings.Trim(n.Path, "/"), "/")
		if n.Path != "/" {
			depth++
		}
		indent := strings.Repeat("  ", depth)
		if n.Group {
			fmt.Printf("%sGroup %q\n", indent, n.Path)
		} else {
			fmt.Printf("%sDataset %q: %d bytes", indent, n.Path, n.Elements)
			if n.Tag != "" {
				fmt.Printf(", tag %q", n.Tag)
			}
			fmt.Println()
		}
		if len(n.Attrs) > 0 {
			fmt.Printf("%s  Attrs: %v\n", indent, n.Attrs)
		}
		return nil
	})
}

func printVolume(vol *h5j.VolumeStack) {
	fmt.Printf("Volume: %d x %d x %d, %d channel(s), %d-bit\n",
		vol.Width, vol.Height, vol.Frames, vol.Channels, vol.BytesPerPixel*8)
	for c := 0; c < vol.Channels; c++ {
		r := vol.DisplayRanges[c]
		fmt.Printf("  Channel %d: max %g, display range [%g, %g]\n", c, vol.MaxValues[c], r.Min, r.Max)
	}
	fmt.Printf("\nAttributes:\n%s", vol.AttributeReport)
}
