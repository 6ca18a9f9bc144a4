package assets

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/mesh"
)

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadDefaults(t *testing.T) {
	set, err := Load(context.Background(), Sources{})
	require.NoError(t, err)

	for _, typ := range mesh.Types {
		assert.Equal(t, mesh.Builtin(typ), set.Shapes[typ])
		require.NotNil(t, set.Images[typ])
		assert.Equal(t, image.Rect(0, 0, 1, 1), set.Images[typ].Bounds())
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()

	objPath := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(objPath, []byte("v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3 4\n"), 0o644))

	pngPath := filepath.Join(dir, "red.png")
	writePNG(t, pngPath, color.NRGBA{R: 255, A: 255})

	var src Sources
	src.Meshes[mesh.Square] = objPath
	src.Textures[mesh.Star] = pngPath

	set, err := Load(context.Background(), src)
	require.NoError(t, err)

	assert.Len(t, set.Shapes[mesh.Square].Vertices, 4)
	assert.Len(t, set.Shapes[mesh.Square].Indices, 6)
	assert.Equal(t, mesh.Builtin(mesh.Triangle), set.Shapes[mesh.Triangle])

	assert.Equal(t, image.Rect(0, 0, 2, 2), set.Images[mesh.Star].Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, set.Images[mesh.Star].RGBAAt(1, 1))
}

func TestLoadReportsFailingAsset(t *testing.T) {
	var src Sources
	src.Textures[mesh.Square] = filepath.Join(t.TempDir(), "missing.png")

	_, err := Load(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "texture square")
}

func TestLoadHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, Sources{})
	assert.ErrorIs(t, err, context.Canceled)
}
