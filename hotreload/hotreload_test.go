// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hotreload

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/gogpu/framegraph/effect"
)

const manifest = `
name = "tint"
[[pass]]
name = "main"
source = "tint.wgsl"
`

type fakeGraph struct {
	reloads map[string]*effect.Effect
	fail    error
}

func (g *fakeGraph) ReloadShader(name string, e *effect.Effect) error {
	if g.fail != nil {
		return g.fail
	}
	if g.reloads == nil {
		g.reloads = make(map[string]*effect.Effect)
	}
	g.reloads[name] = e
	return nil
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func shaderDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tint.toml"), manifest)
	writeFile(t, filepath.Join(dir, "tint.wgsl"), "// source")
	return dir
}

func TestReloaderManifestChange(t *testing.T) {
	dir := shaderDir(t)
	g := &fakeGraph{}
	r := NewReloader(g, effect.Options{})
	r.Track("tint", filepath.Join(dir, "tint.toml"))
	r.Track("tint_copy", filepath.Join(dir, "tint.toml"))

	names, err := r.Apply(filepath.Join(dir, "tint.toml"))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !slices.Equal(names, []string{"tint", "tint_copy"}) {
		t.Errorf("reloaded = %v", names)
	}
	if e := g.reloads["tint"]; e == nil || e.Name != "tint" || e.Passes[0].Source != "// source" {
		t.Errorf("reloaded effect = %+v", e)
	}
	if g.reloads["tint"] == g.reloads["tint_copy"] {
		t.Error("shaders share one effect value")
	}
}

func TestReloaderSourceChange(t *testing.T) {
	dir := shaderDir(t)
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "other.toml"), manifest)

	g := &fakeGraph{}
	r := NewReloader(g, effect.Options{})
	r.Track("tint", filepath.Join(dir, "tint.toml"))
	r.Track("other", filepath.Join(other, "other.toml"))

	names, err := r.Apply(filepath.Join(dir, "tint.wgsl"))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"tint"}) {
		t.Errorf("reloaded = %v, want only the shader next to the source", names)
	}

	if names, err := r.Apply(filepath.Join(dir, "notes.txt")); err != nil || len(names) != 0 {
		t.Errorf("unrelated file reloaded %v, %v", names, err)
	}
}

func TestReloaderErrors(t *testing.T) {
	dir := shaderDir(t)
	r := NewReloader(&fakeGraph{}, effect.Options{})
	r.Track("tint", filepath.Join(dir, "tint.toml"))

	writeFile(t, filepath.Join(dir, "tint.toml"), "name = ")
	if _, err := r.Apply(filepath.Join(dir, "tint.toml")); err == nil {
		t.Error("broken manifest should fail")
	}

	writeFile(t, filepath.Join(dir, "tint.toml"), manifest)
	boom := errors.New("boom")
	r.target = &fakeGraph{fail: boom}
	if _, err := r.Apply(filepath.Join(dir, "tint.toml")); !errors.Is(err, boom) {
		t.Errorf("Apply error = %v, want boom", err)
	}
}

func TestReloaderManifests(t *testing.T) {
	r := NewReloader(&fakeGraph{}, effect.Options{})
	r.Track("a", "x/a.toml")
	r.Track("b", "x/a.toml")
	r.Track("c", "y/c.toml")
	if got := r.Manifests(); len(got) != 2 || filepath.Base(got[0]) != "a.toml" {
		t.Errorf("Manifests = %v", got)
	}
}

func waitEvent(t *testing.T, w *Watcher) string {
	t.Helper()
	select {
	case p := <-w.Events():
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}
	return ""
}

func TestWatcherDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{Debounce: 10 * time.Millisecond}, dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	writeFile(t, filepath.Join(dir, "ignored.txt"), "x")
	writeFile(t, filepath.Join(dir, "blit.wgsl"), "// v1")
	if got := waitEvent(t, w); filepath.Base(got) != "blit.wgsl" {
		t.Errorf("event = %q, want blit.wgsl", got)
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := New(Options{Debounce: -1}, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel still open")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if len(w.Pending()) != 0 {
		t.Error("Pending after close returned paths")
	}
}

func TestWatcherMissingPath(t *testing.T) {
	if _, err := New(Options{}, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("watching a missing path should fail")
	}
}
