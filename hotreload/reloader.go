// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hotreload

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/gogpu/framegraph/effect"
)

// ShaderReloader swaps the effect of a named shader. *framegraph.Graph
// implements it.
type ShaderReloader interface {
	ReloadShader(name string, e *effect.Effect) error
}

// Reloader maps effect manifests to the shaders declared from them.
type Reloader struct {
	target ShaderReloader
	opts   effect.Options
	// manifest path -> shader names, in Track order
	shaders map[string][]string
	order   []string
}

// NewReloader returns a reloader applying changes to target.
func NewReloader(target ShaderReloader, opts effect.Options) *Reloader {
	return &Reloader{target: target, opts: opts, shaders: make(map[string][]string)}
}

// Track records that shader was built from manifest.
func (r *Reloader) Track(shader, manifest string) {
	key := normalize(manifest)
	if _, ok := r.shaders[key]; !ok {
		r.order = append(r.order, key)
	}
	if !slices.Contains(r.shaders[key], shader) {
		r.shaders[key] = append(r.shaders[key], shader)
	}
}

// Manifests returns the tracked manifest paths.
func (r *Reloader) Manifests() []string { return slices.Clone(r.order) }

// affected returns the manifests a change to path invalidates: the
// manifest itself, or every manifest in the directory of a changed source.
func (r *Reloader) affected(path string) []string {
	key := normalize(path)
	if _, ok := r.shaders[key]; ok {
		return []string{key}
	}
	if filepath.Ext(key) != ".wgsl" {
		return nil
	}
	dir := filepath.Dir(key)
	var out []string
	for _, m := range r.order {
		if filepath.Dir(m) == dir {
			out = append(out, m)
		}
	}
	return out
}

// Apply reloads every shader affected by a change to path and returns the
// names reloaded. A manifest that fails to load leaves its shaders on the
// previous effect.
func (r *Reloader) Apply(path string) ([]string, error) {
	var reloaded []string
	var errs []error
	for _, m := range r.affected(path) {
		for _, name := range r.shaders[m] {
			e, err := effect.Load(m, r.opts)
			if err != nil {
				errs = append(errs, fmt.Errorf("hotreload: shader %q: %w", name, err))
				continue
			}
			if err := r.target.ReloadShader(name, e); err != nil {
				errs = append(errs, fmt.Errorf("hotreload: shader %q: %w", name, err))
				continue
			}
			reloaded = append(reloaded, name)
		}
	}
	if len(reloaded) > 0 {
		slogger().Info("hotreload: reloaded", "path", path, "shaders", reloaded)
	}
	for _, err := range errs {
		slogger().Warn("hotreload: reload failed", "path", path, "error", err)
	}
	return reloaded, errors.Join(errs...)
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
