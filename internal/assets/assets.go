// Package assets reads every configured mesh and texture from disk. Files are decoded
// concurrently; nothing here touches the GPU.
package assets

import (
	"context"
	"image"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/texture"
)

// Sources names the files for each mesh type. An empty mesh path selects the built-in
// shape; an empty texture path selects a white texel.
type Sources struct {
	Meshes   [mesh.Count]string
	Textures [mesh.Count]string
}

// Set is the decoded content for every mesh type.
type Set struct {
	Shapes [mesh.Count]mesh.Shape
	Images [mesh.Count]*image.RGBA
}

// Load decodes everything src names. The first failure cancels the remaining work and
// is returned.
func Load(ctx context.Context, src Sources) (*Set, error) {
	start := hrtime.Now()
	set := &Set{}

	group, ctx := errgroup.WithContext(ctx)
	for _, t := range mesh.Types {
		group.Go(func() error {
			shape, err := loadShape(ctx, t, src.Meshes[t])
			if err != nil {
				return errors.Wrapf(err, "mesh %s", t)
			}
			set.Shapes[t] = shape
			return nil
		})

		group.Go(func() error {
			img, err := loadImage(ctx, src.Textures[t])
			if err != nil {
				return errors.Wrapf(err, "texture %s", t)
			}
			set.Images[t] = img
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logging.Logger().Debug("assets loaded", "elapsed", hrtime.Since(start))
	return set, nil
}

func loadShape(ctx context.Context, t mesh.Type, path string) (mesh.Shape, error) {
	if err := ctx.Err(); err != nil {
		return mesh.Shape{}, err
	}
	if path == "" {
		return mesh.Builtin(t), nil
	}
	return mesh.LoadOBJ(path)
}

func loadImage(ctx context.Context, path string) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return texture.White(), nil
	}
	return texture.Load(path)
}
