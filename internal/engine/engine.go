// Package engine assembles the renderer on top of a device: pipeline, geometry,
// materials, swapchain and frame scheduler, and tears them down in reverse.
package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"

	"github.com/vkngwrapper/menagerie/internal/assets"
	"github.com/vkngwrapper/menagerie/internal/frame"
	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/pipecache"
	"github.com/vkngwrapper/menagerie/internal/scene"
	"github.com/vkngwrapper/menagerie/internal/swapchain"
)

type Options struct {
	// VertexShader and FragmentShader are SPIR-V.
	VertexShader   []byte
	FragmentShader []byte
	Assets         *assets.Set

	MaxInstances int
	ClearColor   [4]float32
	Camera       scene.Camera
	Strict       bool

	// PipelineCachePath persists the pipeline cache; empty keeps it in memory.
	PipelineCachePath string
}

type Engine struct {
	dev gpu.Device

	cache    *pipecache.Cache
	pipeline *gpu.PipelineBundle
	geometry *mesh.Geometry

	textures     [mesh.Count]gpu.Texture
	materialPool gpu.DescriptorPool
	materials    [mesh.Count]gpu.DescriptorSet

	swapchains *swapchain.Manager
	scheduler  *frame.Scheduler
}

// New builds every session resource. If the window is minimized it waits for it to be
// restored, or for ctx to end. On failure everything already built is released.
func New(ctx context.Context, dev gpu.Device, window swapchain.Window, opts Options) (*Engine, error) {
	start := hrtime.Now()
	e := &Engine{dev: dev}

	if err := e.setup(ctx, window, opts); err != nil {
		if closeErr := e.Close(); closeErr != nil {
			logging.Logger().Warn("teardown after failed setup", "err", closeErr)
		}
		return nil, err
	}

	logging.Logger().Info("engine ready", "elapsed", hrtime.Since(start))
	return e, nil
}

func (e *Engine) setup(ctx context.Context, window swapchain.Window, opts Options) error {
	if opts.Assets == nil {
		return errors.New("engine needs loaded assets")
	}

	support, err := e.dev.SurfaceSupport()
	if err != nil {
		return errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 {
		return errors.Mark(errors.New("surface offers no formats"), gpu.ErrDeviceCreation)
	}
	colorFormat := swapchain.ChooseSurfaceFormat(support.Formats).Format

	e.cache, err = pipecache.Open(e.dev, opts.PipelineCachePath)
	if err != nil {
		return err
	}

	pipelineStart := hrtime.Now()
	e.pipeline, err = e.dev.NewPipeline(gpu.PipelineInfo{
		VertexShader:   opts.VertexShader,
		FragmentShader: opts.FragmentShader,
		ColorFormat:    colorFormat,
		Cache:          e.cache.Handle(),
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create graphics pipeline"), gpu.ErrDeviceCreation)
	}
	logging.Logger().Debug("pipeline created", "format", colorFormat, "elapsed", hrtime.Since(pipelineStart))

	var menagerie mesh.Menagerie
	for _, t := range mesh.Types {
		if err := menagerie.Consume(t, opts.Assets.Shapes[t]); err != nil {
			return err
		}
	}
	e.geometry, err = menagerie.Finalize(e.dev)
	if err != nil {
		return err
	}

	if err := e.createMaterials(opts.Assets); err != nil {
		return err
	}

	e.swapchains, err = swapchain.NewManager(e.dev, window, swapchain.Options{
		Pipeline:     e.pipeline,
		ColorFormat:  colorFormat,
		MaxInstances: opts.MaxInstances,
	})
	if err != nil {
		return err
	}
	// Recreate from nothing: it also covers starting minimized.
	if _, err := e.swapchains.Recreate(ctx); err != nil {
		return errors.Wrap(err, "build swapchain")
	}

	e.scheduler, err = frame.NewScheduler(e.dev, e.swapchains, frame.Resources{
		Pipeline:   e.pipeline,
		Geometry:   e.geometry,
		Materials:  e.materials,
		Camera:     opts.Camera,
		ClearColor: opts.ClearColor,
	}, frame.Options{
		MaxInstances: opts.MaxInstances,
		Strict:       opts.Strict,
	})
	return err
}

// createMaterials uploads one texture per mesh type and binds each to its own set.
func (e *Engine) createMaterials(set *assets.Set) error {
	var err error
	e.materialPool, err = e.dev.NewDescriptorPool(mesh.Count, []gpu.PoolSize{
		{Type: gpu.DescriptorTypeCombinedImageSampler, Count: mesh.Count},
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create material descriptor pool"), gpu.ErrDeviceCreation)
	}

	sets, err := e.materialPool.Allocate(e.pipeline.MaterialLayout, mesh.Count)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "allocate material descriptor sets"), gpu.ErrDeviceCreation)
	}

	for _, t := range mesh.Types {
		img := set.Images[t]
		if img == nil {
			return errors.Newf("no image for %s", t)
		}

		e.textures[t], err = e.dev.NewTexture(img)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "upload %s texture", t), gpu.ErrDeviceCreation)
		}
		if err := sets[t].WriteTexture(0, e.textures[t]); err != nil {
			return errors.Wrapf(err, "write %s material", t)
		}
		e.materials[t] = sets[t]
	}
	return nil
}

// Render draws one frame of sc.
func (e *Engine) Render(ctx context.Context, sc *scene.Scene) (frame.Outcome, error) {
	return e.scheduler.Render(ctx, sc)
}

// RequestRecreate rebuilds the swapchain before the next frame.
func (e *Engine) RequestRecreate() {
	e.scheduler.RequestRecreate()
}

// Close waits for the device, saves the pipeline cache and releases everything in
// reverse creation order. It is safe to call more than once and on a partially built
// engine.
func (e *Engine) Close() error {
	var errs []error

	if e.swapchains != nil {
		if err := e.swapchains.Close(); err != nil {
			errs = append(errs, err)
		}
		e.swapchains = nil
	} else if err := e.dev.WaitIdle(); err != nil {
		errs = append(errs, errors.Wrap(err, "wait for device idle"))
	}
	e.scheduler = nil

	if e.materialPool != nil {
		e.materialPool.Destroy()
		e.materialPool = nil
	}
	e.materials = [mesh.Count]gpu.DescriptorSet{}
	for i, tex := range e.textures {
		if tex != nil {
			tex.Destroy()
			e.textures[i] = nil
		}
	}

	e.geometry.Destroy()
	e.geometry = nil

	e.pipeline.Destroy()
	e.pipeline = nil

	if e.cache != nil {
		if err := e.cache.Save(); err != nil {
			errs = append(errs, err)
		}
		e.cache.Destroy()
		e.cache = nil
	}

	return errors.Join(errs...)
}
