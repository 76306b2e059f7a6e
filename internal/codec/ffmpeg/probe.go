package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/robert-malhotra/go-h5j/internal/codec"
)

// probeOutput is the subset of `ffprobe -of json -show_streams` we use.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index            int    `json:"index"`
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	PixFmt           string `json:"pix_fmt"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	NbFrames         string `json:"nb_frames"`
}

func probe(ctx context.Context, bin, path string) ([]codec.Stream, error) {
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-of", "json",
		"-show_streams",
		path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseProbe(out)
}

func parseProbe(out []byte) ([]codec.Stream, error) {
	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	streams := make([]codec.Stream, 0, len(po.Streams))
	for _, ps := range po.Streams {
		s := codec.Stream{
			Index:  ps.Index,
			Codec:  ps.CodecName,
			Width:  ps.Width,
			Height: ps.Height,
		}
		switch ps.CodecType {
		case "video":
			s.Type = codec.MediaVideo
			s.Depth = componentDepth(ps.BitsPerRawSample, ps.PixFmt)
		case "audio":
			s.Type = codec.MediaAudio
		}
		if n, err := strconv.ParseInt(ps.NbFrames, 10, 64); err == nil && n > 0 {
			s.Frames = n
		}
		streams = append(streams, s)
	}
	return streams, nil
}

var pixFmtDepth = regexp.MustCompile(`(\d+)(le|be)$`)

// componentDepth returns the bits per component of a video stream, from
// bits_per_raw_sample when present, else from the pixel format name
// (yuv420p10le is 10 bits, yuv420p is 8).
func componentDepth(bitsPerRawSample, pixFmt string) int {
	if n, err := strconv.Atoi(bitsPerRawSample); err == nil && n > 0 {
		return n
	}
	if m := pixFmtDepth.FindStringSubmatch(pixFmt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 8 && n <= 16 {
			return n
		}
	}
	return 8
}
