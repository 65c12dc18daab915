// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gogpu/framegraph/gpu"
)

// Feature records draw or dispatch work into a stage. Features are
// attached to a stage with Graph.AttachFeature and called by the graph:
// Init once the graph is built, Update and Render every frame, Resize after
// the stage's attachments changed size, Reload after a shader reload
// rebuilt the materials the stage uses.
type Feature interface {
	Init(g *Graph, s *Stage) error
	Shutdown()
	Reload() error
	Update(dt time.Duration)
	Render(cb *gpu.CommandBuffer)
	Resize(width, height uint32)
}

// FeatureParams are the settings a feature is created with, typically
// decoded from a graph file.
type FeatureParams map[string]any

// String returns the string parameter key, or def.
func (p FeatureParams) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer parameter key, or def. TOML integers decode as
// int64 and are accepted along with float64 and int.
func (p FeatureParams) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// FeatureFactory creates a feature from its parameters.
// Factories are registered via RegisterFeature and called by NewFeature.
type FeatureFactory func(FeatureParams) (Feature, error)

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	features   = make(map[string]FeatureFactory)
)

// RegisterFeature registers a feature factory under name. Feature packages
// call it from init:
//
//	func init() {
//	    framegraph.RegisterFeature("fullscreen", func(p framegraph.FeatureParams) (framegraph.Feature, error) {
//	        return New(p.String("material", "")), nil
//	    })
//	}
//
// RegisterFeature panics if factory is nil or the name is already taken.
func RegisterFeature(name string, factory FeatureFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("framegraph: RegisterFeature factory is nil")
	}
	if _, dup := features[name]; dup {
		panic("framegraph: RegisterFeature called twice for " + name)
	}
	features[name] = factory
}

// UnregisterFeature removes a feature factory. It is a no-op for unknown
// names.
func UnregisterFeature(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(features, name)
}

// NewFeature creates a feature by registered name.
func NewFeature(name string, params FeatureParams) (Feature, error) {
	registryMu.RLock()
	factory, ok := features[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("framegraph: unknown feature %q (forgotten import?)", name)
	}
	return factory(params)
}

// RegisteredFeatures returns the registered feature names, sorted.
func RegisteredFeatures() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
