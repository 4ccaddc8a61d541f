package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"letterpod/internal/services"
)

// FFmpegTranscoder re-encodes audio to a fixed bitrate mono MP3.
type FFmpegTranscoder struct {
	Binary     string
	Bitrate    string
	ScratchDir string
}

// Transcode writes audio to a scratch file, runs ffmpeg, and returns the
// re-encoded bytes. Scratch files are removed afterwards.
func (t FFmpegTranscoder) Transcode(ctx context.Context, audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrValidation, "rendering", "transcode", "no audio", nil)
	}
	dir, err := os.MkdirTemp(t.ScratchDir, "letterpod-transcode-")
	if err != nil {
		return nil, fmt.Errorf("transcode: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.mp3")
	output := filepath.Join(dir, "output.mp3")
	if err := os.WriteFile(input, audio, 0o600); err != nil {
		return nil, fmt.Errorf("transcode: write input: %w", err)
	}

	bitrate := strings.TrimSpace(t.Bitrate)
	if bitrate == "" {
		bitrate = "64k"
	}
	stream := ffmpeg.Input(input).
		Output(output, ffmpeg.KwArgs{
			"c:a": "libmp3lame",
			"b:a": bitrate,
			"ac":  1,
			"f":   "mp3",
		}).
		OverWriteOutput()
	stream.Context = ctx
	if binary := strings.TrimSpace(t.Binary); binary != "" {
		stream = stream.SetFfmpegPath(binary)
	}
	if err := stream.Run(); err != nil {
		return nil, fmt.Errorf("transcode: ffmpeg: %w", err)
	}

	encoded, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("transcode: read output: %w", err)
	}
	return encoded, nil
}
