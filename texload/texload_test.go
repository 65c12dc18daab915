// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texload

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/bmp"
)

func writeImage(t *testing.T, name string, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	// Mark the top-left pixel so flips are observable.
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	switch filepath.Ext(name) {
	case ".bmp":
		err = bmp.Encode(f, img)
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPNG(t *testing.T) {
	path := writeImage(t, "albedo.png", 4, 2, color.NRGBA{B: 255, A: 255})
	img, err := Load(path, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Width != 4 || img.Height != 2 || img.MipLevels != 1 {
		t.Errorf("got %dx%d with %d levels", img.Width, img.Height, img.MipLevels)
	}
	if len(img.Pixels) != 4*2*4 {
		t.Errorf("len(Pixels) = %d, want 32", len(img.Pixels))
	}
	if img.Pixels[0] != 255 || img.Pixels[2] != 0 {
		t.Errorf("first pixel = %v, want red", img.Pixels[:4])
	}

	c := img.TextureCreation("albedo")
	if c.Name != "albedo" || c.Format != gputypes.TextureFormatRGBA8Unorm || c.Width != 4 {
		t.Errorf("creation = %+v", c)
	}
}

func TestLoadBMPFlipped(t *testing.T) {
	path := writeImage(t, "mask.bmp", 2, 2, color.NRGBA{G: 255, A: 255})
	img, err := Load(path, Options{FlipY: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// The red marker moves to the last row.
	last := img.Pixels[2*4*1:]
	if last[0] != 255 || last[1] != 0 {
		t.Errorf("flipped marker = %v, want red", last[:4])
	}
	if img.Pixels[0] != 0 {
		t.Errorf("first pixel = %v, want green", img.Pixels[:4])
	}
}

func TestLoadMips(t *testing.T) {
	path := writeImage(t, "mips.png", 8, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := Load(path, Options{GenerateMips: true})
	if err != nil {
		t.Fatal(err)
	}
	if img.MipLevels != 4 {
		t.Errorf("MipLevels = %d, want 4", img.MipLevels)
	}
	// 8x4 + 4x2 + 2x1 + 1x1
	if want := (32 + 8 + 2 + 1) * 4; len(img.Pixels) != want {
		t.Errorf("len(Pixels) = %d, want %d", len(img.Pixels), want)
	}
}

func TestMipCount(t *testing.T) {
	tests := []struct {
		w, h, want uint32
	}{
		{1, 1, 1},
		{256, 256, 9},
		{256, 1, 9},
		{5, 3, 3},
	}
	for _, tt := range tests {
		if got := MipCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load("texture.xyz", Options{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.png"), Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad, Options{}); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadAll(t *testing.T) {
	reqs := []Request{
		{Name: "a", Path: writeImage(t, "a.png", 2, 2, color.White)},
		{Name: "b", Path: writeImage(t, "b.png", 4, 4, color.White)},
		{Name: "c", Path: writeImage(t, "c.bmp", 8, 8, color.White), Options: Options{GenerateMips: true}},
	}
	imgs, err := LoadAll(context.Background(), reqs, 2)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	for i, want := range []uint32{2, 4, 8} {
		if imgs[i].Width != want {
			t.Errorf("image %d width = %d, want %d", i, imgs[i].Width, want)
		}
	}
	if imgs[2].MipLevels != 4 {
		t.Errorf("image c MipLevels = %d, want 4", imgs[2].MipLevels)
	}

	reqs = append(reqs, Request{Name: "missing", Path: filepath.Join(t.TempDir(), "missing.png")})
	if _, err := LoadAll(context.Background(), reqs, 0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestLoaderCreation(t *testing.T) {
	path := writeImage(t, "l.png", 2, 2, color.White)
	c, err := Loader{}.LoadTexture("logo", path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "logo" || len(c.InitialData) != 16 {
		t.Errorf("creation = %s with %d bytes", c.Name, len(c.InitialData))
	}
}
