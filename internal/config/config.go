// Package config loads the renderer's TOML configuration.
package config

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/scene"
)

type Config struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	// Debug enables the validation layers and the debug messenger.
	Debug bool `toml:"debug"`
	// Strict makes acquire, submit and present errors fatal.
	Strict   bool   `toml:"strict"`
	LogLevel string `toml:"log_level"`

	MaxInstances int        `toml:"max_instances"`
	ClearColor   [4]float32 `toml:"clear_color"`

	Camera   Camera  `toml:"camera"`
	Shaders  Shaders `toml:"shaders"`
	Meshes   PerMesh `toml:"meshes"`
	Textures PerMesh `toml:"textures"`

	// PipelineCache is where pipeline cache data is kept between runs. Empty disables
	// persistence.
	PipelineCache string `toml:"pipeline_cache"`
}

type Camera struct {
	Eye    [3]float32 `toml:"eye"`
	Center [3]float32 `toml:"center"`
	Up     [3]float32 `toml:"up"`
	// FovY is the vertical field of view in degrees.
	FovY float32 `toml:"fov_y"`
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
}

// Shaders are SPIR-V files.
type Shaders struct {
	Vertex   string `toml:"vertex"`
	Fragment string `toml:"fragment"`
}

// PerMesh holds one optional file path per mesh type.
type PerMesh struct {
	Triangle string `toml:"triangle"`
	Square   string `toml:"square"`
	Star     string `toml:"star"`
}

// ByType indexes the paths by mesh type.
func (p PerMesh) ByType() [mesh.Count]string {
	var paths [mesh.Count]string
	paths[mesh.Triangle] = p.Triangle
	paths[mesh.Square] = p.Square
	paths[mesh.Star] = p.Star
	return paths
}

func Default() *Config {
	cam := scene.DefaultCamera()
	return &Config{
		Title:        "menagerie",
		Width:        800,
		Height:       600,
		LogLevel:     "info",
		MaxInstances: 1024,
		ClearColor:   [4]float32{1, 0.5, 0.25, 1},
		Camera: Camera{
			Eye:    cam.Eye,
			Center: cam.Center,
			Up:     cam.Up,
			FovY:   45,
			Near:   cam.Near,
			Far:    cam.Far,
		},
		Shaders: Shaders{
			Vertex:   "shaders/vert.spv",
			Fragment: "shaders/frag.spv",
		},
		PipelineCache: "~/.cache/menagerie/pipeline_cache.bin",
	}
}

// Load reads path over the defaults, expands ~ in every path and validates the result.
// A missing file is an error; use Default when no file is given.
func Load(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, "expand config path")
	}

	f, err := os.Open(expanded)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return cfg, nil
}

// Decode reads TOML from r over the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Newf("unknown config keys:\n%s", strict.String())
		}
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finish expands paths and validates. Call it again after overriding fields.
func (c *Config) Finish() error {
	if err := c.expandPaths(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.Shaders.Vertex, &c.Shaders.Fragment,
		&c.Meshes.Triangle, &c.Meshes.Square, &c.Meshes.Star,
		&c.Textures.Triangle, &c.Textures.Square, &c.Textures.Star,
		&c.PipelineCache,
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "expand %q", *p)
		}
		*p = expanded
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Width, c.Height)
	}
	if c.MaxInstances <= 0 {
		return errors.Newf("max_instances must be positive, got %d", c.MaxInstances)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for i, v := range c.ClearColor {
		if v < 0 || v > 1 {
			return errors.Newf("clear_color[%d] = %g is outside [0, 1]", i, v)
		}
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.New("both shaders.vertex and shaders.fragment are required")
	}

	cam := c.Camera
	if cam.FovY <= 0 || cam.FovY >= 180 {
		return errors.Newf("camera.fov_y = %g must be between 0 and 180 degrees", cam.FovY)
	}
	if cam.Near <= 0 || cam.Far <= cam.Near {
		return errors.Newf("camera clip range [%g, %g] is invalid", cam.Near, cam.Far)
	}
	if mgl32.Vec3(cam.Eye).ApproxEqual(mgl32.Vec3(cam.Center)) {
		return errors.New("camera.eye and camera.center coincide")
	}
	if mgl32.Vec3(cam.Up).Len() == 0 {
		return errors.New("camera.up is zero")
	}
	return nil
}

// SceneCamera converts the camera section for the renderer.
func (c *Config) SceneCamera() scene.Camera {
	return scene.Camera{
		Eye:    c.Camera.Eye,
		Center: c.Camera.Center,
		Up:     c.Camera.Up,
		FovY:   mgl32.DegToRad(c.Camera.FovY),
		Near:   c.Camera.Near,
		Far:    c.Camera.Far,
	}
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return errors.Wrap(toml.NewEncoder(w).Encode(c), "encode config")
}
