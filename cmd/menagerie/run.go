package main

import (
	"os"
	"os/signal"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/vkngwrapper/menagerie/internal/app"
	"github.com/vkngwrapper/menagerie/internal/assets"
	"github.com/vkngwrapper/menagerie/internal/config"
	"github.com/vkngwrapper/menagerie/internal/engine"
	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/scene"
	"github.com/vkngwrapper/menagerie/internal/vkng"
	"github.com/vkngwrapper/menagerie/internal/window"
)

func newRunCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the window and render the scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	f.register(cmd)
	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	set, err := assets.Load(ctx, assets.Sources{
		Meshes:   cfg.Meshes.ByType(),
		Textures: cfg.Textures.ByType(),
	})
	if err != nil {
		return errors.Wrap(err, "load assets")
	}

	vert, err := os.ReadFile(cfg.Shaders.Vertex)
	if err != nil {
		return errors.Wrap(err, "read vertex shader")
	}
	frag, err := os.ReadFile(cfg.Shaders.Fragment)
	if err != nil {
		return errors.Wrap(err, "read fragment shader")
	}

	win, err := window.New(window.Options{Title: cfg.Title, Width: cfg.Width, Height: cfg.Height})
	if err != nil {
		return err
	}
	defer win.Destroy()

	dev, closeDevice, err := openDevice(win, cfg, f.device)
	if err != nil {
		return err
	}
	defer closeDevice()

	eng, err := engine.New(ctx, dev, win, engine.Options{
		VertexShader:      vert,
		FragmentShader:    frag,
		Assets:            set,
		MaxInstances:      cfg.MaxInstances,
		ClearColor:        cfg.ClearColor,
		Camera:            cfg.SceneCamera(),
		Strict:            cfg.Strict,
		PipelineCachePath: cfg.PipelineCache,
	})
	if err != nil {
		return err
	}

	stats, runErr := app.Run(ctx, win, eng, scene.Default(), app.Options{
		Title:         cfg.Title,
		TitleInterval: time.Second,
	})
	logging.Logger().Info("render loop finished",
		"presented", stats.Presented,
		"recreated", stats.Recreated,
		"abandoned", stats.Abandoned,
	)

	return errors.Join(runErr, eng.Close())
}

// openDevice creates the instance and logical device for win. The returned func
// releases both.
func openDevice(win *window.Window, cfg *config.Config, name string) (*vkng.Device, func(), error) {
	inst, err := vkng.NewInstance(win.Handle(), vkng.Options{AppName: cfg.Title, Debug: cfg.Debug})
	if err != nil {
		return nil, nil, err
	}

	candidates, err := inst.Candidates()
	if err != nil {
		inst.Destroy()
		return nil, nil, err
	}
	chosen, err := vkng.Pick(candidates, name)
	if err != nil {
		inst.Destroy()
		return nil, nil, err
	}

	dev, err := inst.NewDevice(chosen)
	if err != nil {
		inst.Destroy()
		return nil, nil, err
	}

	return dev, func() {
		dev.Destroy()
		inst.Destroy()
	}, nil
}

var _ app.Window = (*window.Window)(nil)
