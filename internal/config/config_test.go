package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/mesh"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Finish())

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cfg.PipelineCache, home))
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
width = 1280
strict = true
clear_color = [0, 0, 0, 1]

[camera]
eye = [2, 0, -2]

[meshes]
star = "~/models/star.obj"
`))
	require.NoError(t, err)

	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.True(t, cfg.Strict)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cfg.ClearColor)
	assert.Equal(t, [3]float32{2, 0, -2}, cfg.Camera.Eye)
	assert.Equal(t, [3]float32{0, 0, -1}, cfg.Camera.Up)

	home, err := homedir.Dir()
	require.NoError(t, err)
	paths := cfg.Meshes.ByType()
	assert.Equal(t, filepath.Join(home, "models/star.obj"), paths[mesh.Star])
	assert.Empty(t, paths[mesh.Triangle])
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("widht = 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widht")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero width":     func(c *Config) { c.Width = 0 },
		"no instances":   func(c *Config) { c.MaxInstances = 0 },
		"bad level":      func(c *Config) { c.LogLevel = "loud" },
		"clear color":    func(c *Config) { c.ClearColor[2] = 1.5 },
		"missing shader": func(c *Config) { c.Shaders.Fragment = "" },
		"fov":            func(c *Config) { c.Camera.FovY = 180 },
		"clip range":     func(c *Config) { c.Camera.Far = c.Camera.Near },
		"eye at center":  func(c *Config) { c.Camera.Eye = c.Camera.Center },
		"zero up":        func(c *Config) { c.Camera.Up = [3]float32{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSceneCamera(t *testing.T) {
	cam := Default().SceneCamera()
	assert.InDelta(t, mgl32.DegToRad(45), cam.FovY, 1e-6)
	assert.Equal(t, mgl32.Vec3{1, 0, -1}, cam.Eye)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Title = "round trip"
	cfg.Textures.Square = "/tmp/square.png"

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "round trip", decoded.Title)
	assert.Equal(t, "/tmp/square.png", decoded.Textures.Square)
	assert.Equal(t, cfg.Camera, decoded.Camera)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menagerie.toml")
	require.NoError(t, os.WriteFile(path, []byte("title = \"from file\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from file", cfg.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
