package exec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCodecByExtension(t *testing.T) {
	codec, err := DetectCodec("osmosis-1_20260101_000000.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, CodecGzip, codec)

	codec, err = DetectCodec("osmosis-1_20260101_000000.lz4")
	require.NoError(t, err)
	assert.Equal(t, CodecLZ4, codec)
}

func TestDetectCodecByMagicBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x1f, 0x8b, 0x00, 0x00}, 0o644))

	codec, err := DetectCodec(path)
	require.NoError(t, err)
	assert.Equal(t, CodecGzip, codec)
}

func TestCreateAndExtractGzipArchiveRoundTrips(t *testing.T) {
	r := New()
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "data", "file.txt"), []byte("hello"), 0o644))

	archive := filepath.Join(t.TempDir(), "net_20260101_000000.tar.gz")
	require.NoError(t, r.CreateGzipArchive(ctx, src, archive, []string{"data", "wasm"}))

	dest := t.TempDir()
	require.NoError(t, r.ExtractArchive(ctx, archive, dest))

	got, err := os.ReadFile(filepath.Join(dest, "data", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
