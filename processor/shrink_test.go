package processor

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiseImage produces an incompressible image so test files are reliably
// oversized.
func noiseImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(rng.Intn(256))
			img.Pix[i+1] = uint8(rng.Intn(256))
			img.Pix[i+2] = uint8(rng.Intn(256))
			img.Pix[i+3] = 255
		}
	}
	return img
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}

func TestNoopUnderBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.jpg")
	require.NoError(t, imaging.Save(noiseImage(50, 50), path, imaging.JPEGQuality(80)))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	size, err := EnsureMaxSize(path, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, int64(len(before)), size)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestJPEGShrinksUnderBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jpg")
	require.NoError(t, imaging.Save(noiseImage(500, 500), path, imaging.JPEGQuality(95)))

	const budget = 40000
	require.Greater(t, fileSize(t, path), int64(budget))

	size, err := EnsureMaxSize(path, budget)
	require.NoError(t, err)
	assert.LessOrEqual(t, size, int64(budget))
	assert.Equal(t, size, fileSize(t, path))

	// Same container format, still decodable, never upscaled.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, cfg.Width, 500)
}

func TestReencodeIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jpg")
	require.NoError(t, imaging.Save(noiseImage(400, 400), path, imaging.JPEGQuality(95)))

	const budget = 30000
	first, err := EnsureMaxSize(path, budget)
	require.NoError(t, err)
	require.LessOrEqual(t, first, int64(budget))

	// Already under budget: both follow-up calls are no-ops.
	second, err := EnsureMaxSize(path, budget)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := EnsureMaxSize(path, budget)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestPNGBestEffortWhenBudgetUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.png")
	require.NoError(t, imaging.Save(noiseImage(300, 300), path))

	orig := fileSize(t, path)

	// Noise does not deflate; 1000 bytes is unreachable even at the width
	// floor. The smallest encoding found must still replace the original.
	size, err := EnsureMaxSize(path, 1000)
	require.NoError(t, err)
	assert.Less(t, size, orig)
	assert.Greater(t, size, int64(1000))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestGIFKeepsAllFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")

	src := &gif.GIF{}
	for i := 0; i < 2; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, 200, 200), palette.Plan9)
		draw.FloydSteinberg.Draw(frame, frame.Bounds(), noiseImage(200, 200), image.Point{})
		src.Image = append(src.Image, frame)
		src.Delay = append(src.Delay, 10)
		src.Disposal = append(src.Disposal, gif.DisposalNone)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gif.EncodeAll(f, src))
	require.NoError(t, f.Close())

	orig := fileSize(t, path)
	budget := orig / 2

	size, err := EnsureMaxSize(path, budget)
	require.NoError(t, err)
	assert.Less(t, size, orig)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 2)
	assert.Len(t, decoded.Delay, 2)
}

func TestUnsupportedFormatLeftUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.bmp")
	require.NoError(t, imaging.Save(noiseImage(200, 200), path))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Far over budget, but there is no re-encode path that keeps the
	// format, so the file stays as it is.
	size, err := EnsureMaxSize(path, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(len(before)), size)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCorruptInputLeftUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	junk := bytes.Repeat([]byte{0xde, 0xad}, 2048)
	require.NoError(t, os.WriteFile(path, junk, 0644))

	size, err := EnsureMaxSize(path, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(len(junk)), size)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, junk, after)
}
