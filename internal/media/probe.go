// Package media inspects uploaded video files.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Info is what ffprobe reports about a file.
type Info struct {
	Duration   float64 // seconds
	Width      int
	Height     int
	VideoCodec string
	FormatName string
}

// Prober extracts media information from a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// FFProbe shells out to the ffprobe binary.
type FFProbe struct {
	Path    string
	Timeout time.Duration
}

// NewFFProbe returns a prober for the binary at path ("ffprobe" when empty).
func NewFFProbe(path string) *FFProbe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFProbe{Path: path, Timeout: 30 * time.Second}
}

func (p *FFProbe) Probe(ctx context.Context, path string) (*Info, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.Path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseProbeOutput(stdout.Bytes())
}

// Check verifies the ffprobe binary is runnable.
func (p *FFProbe) Check(ctx context.Context) error {
	if err := exec.CommandContext(ctx, p.Path, "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not available at %q: %w", p.Path, err)
	}
	return nil
}

type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

func parseProbeOutput(data []byte) (*Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &Info{FormatName: out.Format.FormatName}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.VideoCodec = s.CodecName
		info.Width = s.Width
		info.Height = s.Height
		if info.Duration == 0 {
			info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		}
		break
	}

	if info.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}
