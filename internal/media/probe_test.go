package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFFProbeVideoArgs(t *testing.T) {
	prober := NewFFProbe("", time.Second)
	var gotBinary string
	var gotArgs []string
	prober.Run = func(_ context.Context, binary string, args ...string) ([]byte, error) {
		gotBinary = binary
		gotArgs = args
		return []byte(`{"streams":[],"format":{"duration":"3.000000"}}`), nil
	}

	meta, err := prober.Probe(context.Background(), "/tmp/clip.mp4", KindVideo)
	require.NoError(t, err)
	require.Equal(t, "ffprobe", gotBinary)
	require.Equal(t, "/tmp/clip.mp4", gotArgs[len(gotArgs)-1])
	require.Contains(t, gotArgs, "format=duration:stream=width,height")
	require.Equal(t, Metadata{Duration: 3}, meta)
}

func TestFFProbeVideoErrors(t *testing.T) {
	prober := NewFFProbe("ffprobe", time.Second)

	prober.Run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, err := prober.Probe(context.Background(), "clip.mp4", KindVideo)
	require.Error(t, err)

	prober.Run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"format":{"duration":"N/A"}}`), nil
	}
	_, err = prober.Probe(context.Background(), "clip.mp4", KindVideo)
	require.Error(t, err)
}

func TestFFProbeImageAndRaw(t *testing.T) {
	prober := NewFFProbe("ffprobe", time.Second)

	meta, err := prober.Probe(context.Background(), stageImage(t), KindImage)
	require.NoError(t, err)
	require.Equal(t, Metadata{Width: 4, Height: 3}, meta)

	broken := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o600))
	_, err = prober.Probe(context.Background(), broken, KindImage)
	require.Error(t, err)

	meta, err = prober.Probe(context.Background(), broken, KindRaw)
	require.NoError(t, err)
	require.Zero(t, meta)
}
