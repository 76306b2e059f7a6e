package ffmpeg

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-h5j/internal/codec"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{
	  "streams": [
	    {"index": 0, "codec_type": "audio", "codec_name": "aac"},
	    {"index": 1, "codec_type": "video", "codec_name": "hevc", "width": 512, "height": 256,
	     "pix_fmt": "yuv420p10le", "nb_frames": "120"},
	    {"index": 2, "codec_type": "video", "codec_name": "h264", "width": 8, "height": 8,
	     "pix_fmt": "yuv420p", "bits_per_raw_sample": "8", "nb_frames": "N/A"}
	  ]
	}`)

	streams, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if len(streams) != 3 {
		t.Fatalf("got %d streams, want 3", len(streams))
	}
	if streams[0].Type != codec.MediaAudio {
		t.Errorf("stream 0 type = %v", streams[0].Type)
	}
	v := streams[1]
	if v.Type != codec.MediaVideo || v.Codec != "hevc" || v.Width != 512 || v.Height != 256 || v.Depth != 10 || v.Frames != 120 {
		t.Errorf("stream 1 = %+v", v)
	}
	if streams[2].Frames != 0 || streams[2].Depth != 8 {
		t.Errorf("stream 2 = %+v", streams[2])
	}

	if _, err := parseProbe([]byte("not json")); err == nil {
		t.Error("expected error for invalid output")
	}
}

func TestComponentDepth(t *testing.T) {
	tests := []struct {
		bits, pixFmt string
		want         int
	}{
		{"12", "yuv420p", 12},
		{"", "yuv420p", 8},
		{"", "yuv444p12le", 12},
		{"", "gray16be", 16},
		{"N/A", "gray", 8},
		{"", "rgb48le", 8},
	}
	for _, tt := range tests {
		if got := componentDepth(tt.bits, tt.pixFmt); got != tt.want {
			t.Errorf("componentDepth(%q, %q) = %d, want %d", tt.bits, tt.pixFmt, got, tt.want)
		}
	}
}

func TestDecoderArgs(t *testing.T) {
	d := &decoder{
		demux:   &demuxer{path: "/tmp/x.bin"},
		stream:  codec.Stream{Index: 2},
		threads: 4,
		format:  codec.Gray16LE,
	}
	args := strings.Join(d.args(), " ")
	for _, want := range []string{"-threads 4", "-i /tmp/x.bin", "-map 0:2", "-pix_fmt gray16le", "-f rawvideo"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestNegotiate(t *testing.T) {
	d := &decoder{}
	if err := d.Negotiate(codec.FormatNone); !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Errorf("Negotiate(none) = %v", err)
	}
	if err := d.Negotiate(codec.RGB24); err != nil {
		t.Errorf("Negotiate(rgb24) = %v", err)
	}
	if _, err := d.ReceiveFrame(); !errors.Is(err, codec.ErrAgain) {
		t.Errorf("ReceiveFrame before input = %v, want ErrAgain", err)
	}
	d.SendPacket(nil)
	if _, err := d.ReceiveFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("ReceiveFrame after flush = %v, want io.EOF", err)
	}
}

func TestMissingBinaries(t *testing.T) {
	e := New(WithBinaries("h5j-no-such-ffmpeg", "h5j-no-such-ffprobe"))
	if _, err := e.Open([]byte{1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open err = %v, want ErrNotFound", err)
	}
}

// TestDecodeGeneratedClip round-trips a clip encoded by the local ffmpeg.
func TestDecodeGeneratedClip(t *testing.T) {
	e := New(WithTempDir(t.TempDir()))
	if err := e.Available(); err != nil {
		t.Skip(err)
	}

	clip := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi",
		"-i", "testsrc=size=32x16:rate=5", "-frames:v", "3",
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p", clip)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate clip: %v: %s", err, out)
	}
	data, err := os.ReadFile(clip)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	dm, err := e.Open(data)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dm.Close()

	s, ok := codec.FirstVideo(dm.Streams())
	if !ok {
		t.Fatal("no video stream")
	}
	if s.Width != 32 || s.Height != 16 || s.Depth != 8 {
		t.Errorf("stream = %+v", s)
	}

	dec, err := dm.OpenDecoder(s, 2)
	if err != nil {
		t.Fatalf("OpenDecoder failed: %v", err)
	}
	defer dec.Close()
	if err := dec.Negotiate(codec.RGB24); err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}

	pkt, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	if err := dec.SendPacket(pkt); err != nil {
		t.Fatalf("SendPacket failed: %v", err)
	}

	frames := 0
	for {
		pic, err := dec.ReceiveFrame()
		if errors.Is(err, codec.ErrAgain) {
			if _, err := dm.ReadPacket(); !errors.Is(err, io.EOF) {
				t.Fatalf("second ReadPacket = %v, want io.EOF", err)
			}
			dec.SendPacket(nil)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReceiveFrame failed: %v", err)
		}
		if len(pic.Data) != 32*16*3 || pic.Stride != 32*3 {
			t.Errorf("picture %d: %d bytes, stride %d", frames, len(pic.Data), pic.Stride)
		}
		frames++
	}
	if frames != 3 {
		t.Errorf("decoded %d frames, want 3", frames)
	}
}
