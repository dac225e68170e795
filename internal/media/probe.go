package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Prober inspects a local file before it is uploaded.
type Prober interface {
	Probe(ctx context.Context, localPath string, kind Kind) (Metadata, error)
}

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFProbe reads video duration and frame size with the ffprobe CLI and image
// dimensions by decoding the header.
type FFProbe struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFProbe constructs a Prober that shells out to ffprobe for videos.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FFProbe{
		Binary: binary,
		Args: []string{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "format=duration:stream=width,height",
			"-of", "json",
		},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Probe returns what can be learned about the file for its kind. Raw files
// yield empty metadata.
func (p *FFProbe) Probe(ctx context.Context, localPath string, kind Kind) (Metadata, error) {
	switch kind {
	case KindImage:
		return probeImage(localPath)
	case KindVideo:
		return p.probeVideo(ctx, localPath)
	default:
		return Metadata{}, nil
	}
}

func (p *FFProbe) probeVideo(ctx context.Context, localPath string) (Metadata, error) {
	if p == nil {
		return Metadata{}, ErrProbeUnavailable
	}
	if p.Run == nil {
		p.Run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append([]string{}, p.Args...)
	args = append(args, localPath)

	out, err := p.Run(execCtx, p.Binary, args...)
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe: %w", err)
	}

	var payload struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe response: %w", err)
	}

	var meta Metadata
	if payload.Format.Duration != "" {
		d, err := strconv.ParseFloat(payload.Format.Duration, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("parse ffprobe duration %q: %w", payload.Format.Duration, err)
		}
		meta.Duration = d
	}
	if len(payload.Streams) > 0 {
		meta.Width = payload.Streams[0].Width
		meta.Height = payload.Streams[0].Height
	}
	return meta, nil
}

func probeImage(localPath string) (Metadata, error) {
	img, err := imaging.Open(localPath)
	if err != nil {
		return Metadata{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	return Metadata{Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
