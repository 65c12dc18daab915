// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texload decodes image files into RGBA8 texture data, optionally
// with a full mip chain.
//
// PNG, JPEG, GIF, BMP, TIFF and WebP files are supported.
package texload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/gputypes"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("texload: unsupported image format")

var extensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Options control how an image becomes texture data.
type Options struct {
	// GenerateMips appends a bilinear-filtered mip chain down to 1x1.
	GenerateMips bool
	// FlipY flips rows so the first row is the bottom of the image.
	FlipY bool
}

// Image is decoded texture data.
type Image struct {
	Path      string
	Width     uint32
	Height    uint32
	MipLevels uint32
	// Pixels holds tightly packed RGBA8 levels, largest first.
	Pixels []byte
}

// TextureCreation returns a creation that uploads the image.
func (img *Image) TextureCreation(name string) gpu.TextureCreation {
	return gpu.TextureCreation{
		Name:        name,
		Width:       img.Width,
		Height:      img.Height,
		MipLevels:   img.MipLevels,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		InitialData: img.Pixels,
	}
}

// Decode decodes an image and converts it to RGBA.
func Decode(r io.Reader) (*image.RGBA, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("texload: decode: %w", err)
	}
	return toRGBA(src), nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Load reads and converts an image file.
func Load(path string, opts Options) (*Image, error) {
	if !extensions[strings.ToLower(filepath.Ext(path))] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("texload: %w", err)
	}
	defer f.Close()

	rgba, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	img := FromRGBA(rgba, opts)
	img.Path = path
	return img, nil
}

// FromRGBA builds texture data from an RGBA image.
func FromRGBA(rgba *image.RGBA, opts Options) *Image {
	if opts.FlipY {
		rgba = flipY(rgba)
	}
	b := rgba.Bounds()
	img := &Image{
		Width:     uint32(b.Dx()), // #nosec G115 -- image sizes are non-negative
		Height:    uint32(b.Dy()), // #nosec G115 -- image sizes are non-negative
		MipLevels: 1,
		Pixels:    packed(rgba),
	}
	if opts.GenerateMips {
		levels := MipChain(rgba)
		img.MipLevels = uint32(len(levels)) // #nosec G115 -- at most 32 levels
		for _, l := range levels[1:] {
			img.Pixels = append(img.Pixels, l.Pix...)
		}
	}
	return img
}

// MipCount returns the number of levels in a full chain for w x h.
func MipCount(w, h uint32) uint32 {
	n := uint32(1)
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		n++
	}
	return n
}

// MipChain returns src followed by successively halved levels down to 1x1.
func MipChain(src *image.RGBA) []*image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	levels := []*image.RGBA{src}
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		prev := levels[len(levels)-1]
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), xdraw.Src, nil)
		levels = append(levels, next)
	}
	return levels
}

func packed(rgba *image.RGBA) []byte {
	b := rgba.Bounds()
	row := 4 * b.Dx()
	if rgba.Stride == row {
		return rgba.Pix[:row*b.Dy()]
	}
	out := make([]byte, 0, row*b.Dy())
	for y := range b.Dy() {
		off := y * rgba.Stride
		out = append(out, rgba.Pix[off:off+row]...)
	}
	return out
}

func flipY(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	row := 4 * b.Dx()
	for y := range b.Dy() {
		s := src.PixOffset(b.Min.X, b.Min.Y+y)
		d := dst.PixOffset(0, b.Dy()-1-y)
		copy(dst.Pix[d:d+row], src.Pix[s:s+row])
	}
	return dst
}

// Request names one file for LoadAll.
type Request struct {
	Name    string
	Path    string
	Options Options
}

// LoadAll decodes files concurrently with at most limit decoders (no limit
// when limit <= 0). Results are in request order. The first error cancels
// outstanding work.
func LoadAll(ctx context.Context, reqs []Request, limit int) ([]*Image, error) {
	out := make([]*Image, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, r := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := Load(r.Path, r.Options)
			if err != nil {
				return fmt.Errorf("texload: %q: %w", r.Name, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Loader loads textures from files.
type Loader struct{}

// LoadTexture loads path into a creation named name.
func (Loader) LoadTexture(name, path string, opts Options) (gpu.TextureCreation, error) {
	img, err := Load(path, opts)
	if err != nil {
		return gpu.TextureCreation{}, err
	}
	return img.TextureCreation(name), nil
}
