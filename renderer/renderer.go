// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package renderer owns reference-counted textures, buffers, samplers,
// shader effects and materials on top of a gpu.Device.
//
// Every Create call returns a pointer that stays valid until the last
// Destroy call for it. Resources created with a name are cached and can be
// looked up with the Find methods.
//
//	r := renderer.New(device, renderer.DefaultConfig())
//	tex, err := r.CreateTexture(gpu.TextureCreation{Name: "albedo", ...})
//	...
//	r.DestroyTexture(tex)
package renderer

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/texload"
)

// Sentinel errors.
var (
	ErrPoolExhausted   = errors.New("renderer: resource pool exhausted")
	ErrInvalidCreation = errors.New("renderer: invalid creation parameters")
)

// TextureLoader turns an image file into a texture creation.
type TextureLoader interface {
	LoadTexture(name, path string, opts texload.Options) (gpu.TextureCreation, error)
}

// Capacities sets the size of each resource pool.
type Capacities struct {
	Textures  uint32
	Buffers   uint32
	Samplers  uint32
	Shaders   uint32
	Materials uint32
}

// Config configures a Renderer.
type Config struct {
	Capacities Capacities
	// Loader loads texture files; nil uses texload.Loader.
	Loader TextureLoader
}

// DefaultConfig returns the default pool sizes.
func DefaultConfig() Config {
	return Config{
		Capacities: Capacities{
			Textures:  512,
			Buffers:   512,
			Samplers:  64,
			Shaders:   128,
			Materials: 256,
		},
	}
}

// Renderer is the resource façade used by graph and feature code. It is not
// safe for concurrent use.
type Renderer struct {
	device *gpu.Device
	loader TextureLoader

	textures  *pool.Pool[Texture]
	buffers   *pool.Pool[Buffer]
	samplers  *pool.Pool[Sampler]
	shaders   *pool.Pool[ShaderEffect]
	materials *pool.Pool[Material]

	cache resourceCache
}

// resourceCache maps names to live resources.
type resourceCache struct {
	textures  map[string]TextureHandle
	buffers   map[string]BufferHandle
	samplers  map[string]SamplerHandle
	shaders   map[string]ShaderHandle
	materials map[string]MaterialHandle
}

// New returns a Renderer over device. Zero capacities use the defaults.
func New(device *gpu.Device, cfg Config) *Renderer {
	def := DefaultConfig().Capacities
	c := cfg.Capacities
	if c == (Capacities{}) {
		c = def
	}
	loader := cfg.Loader
	if loader == nil {
		loader = texload.Loader{}
	}
	return &Renderer{
		device:    device,
		loader:    loader,
		textures:  pool.New[Texture](c.Textures),
		buffers:   pool.New[Buffer](c.Buffers),
		samplers:  pool.New[Sampler](c.Samplers),
		shaders:   pool.New[ShaderEffect](c.Shaders),
		materials: pool.New[Material](c.Materials),
		cache: resourceCache{
			textures:  make(map[string]TextureHandle),
			buffers:   make(map[string]BufferHandle),
			samplers:  make(map[string]SamplerHandle),
			shaders:   make(map[string]ShaderHandle),
			materials: make(map[string]MaterialHandle),
		},
	}
}

// Device returns the underlying device.
func (r *Renderer) Device() *gpu.Device { return r.device }

// --------------------------------------------------------------------------
// Textures
// --------------------------------------------------------------------------

// CreateTexture creates a texture with one reference.
func (r *Renderer) CreateTexture(c gpu.TextureCreation) (*Texture, error) {
	i := r.textures.Obtain()
	if i == pool.InvalidIndex {
		return nil, fmt.Errorf("%w: textures (capacity %d)", ErrPoolExhausted, r.textures.Capacity())
	}
	h, err := r.device.CreateTexture(c)
	if err != nil {
		r.textures.Release(i)
		return nil, fmt.Errorf("renderer: texture %q: %w", c.Name, err)
	}
	desc, err := r.device.QueryTexture(h)
	if err != nil {
		r.device.DestroyTexture(h)
		r.textures.Release(i)
		return nil, fmt.Errorf("renderer: texture %q: %w", c.Name, err)
	}
	t := r.textures.Access(i)
	*t = Texture{handle: TextureHandle(i), gpu: h, desc: desc, refs: 1}
	if c.Name != "" {
		r.cache.textures[c.Name] = t.handle
	}
	return t, nil
}

// LoadTexture creates a texture from an image file.
func (r *Renderer) LoadTexture(name, path string, opts texload.Options) (*Texture, error) {
	c, err := r.loader.LoadTexture(name, path, opts)
	if err != nil {
		slogger().Warn("renderer: texture load failed", "texture", name, "path", path, "error", err)
		return nil, fmt.Errorf("renderer: load texture %q: %w", name, err)
	}
	return r.CreateTexture(c)
}

// RetainTexture adds a reference.
func (r *Renderer) RetainTexture(t *Texture) { t.refs++ }

// DestroyTexture drops a reference; the texture is destroyed at zero.
// Calls on a texture that already reached zero are ignored.
func (r *Renderer) DestroyTexture(t *Texture) {
	if t == nil || t.refs <= 0 {
		return
	}
	t.refs--
	if t.refs > 0 {
		return
	}
	r.device.DestroyTexture(t.gpu)
	if r.cache.textures[t.desc.Name] == t.handle {
		delete(r.cache.textures, t.desc.Name)
	}
	r.textures.Release(uint32(t.handle))
}

// ResizeTexture resizes a texture in place, keeping its handles.
func (r *Renderer) ResizeTexture(t *Texture, width, height uint32) error {
	if err := r.device.ResizeTexture(t.gpu, width, height); err != nil {
		return fmt.Errorf("renderer: resize %q: %w", t.desc.Name, err)
	}
	desc, err := r.device.QueryTexture(t.gpu)
	if err != nil {
		return err
	}
	t.desc = desc
	return nil
}

// FindTexture returns the live texture registered under name, or nil.
func (r *Renderer) FindTexture(name string) *Texture {
	h, ok := r.cache.textures[name]
	if !ok {
		return nil
	}
	return r.TextureByHandle(h)
}

// TextureByHandle returns the live texture h, or nil.
func (r *Renderer) TextureByHandle(h TextureHandle) *Texture {
	if !r.textures.InUse(uint32(h)) {
		return nil
	}
	return r.textures.Access(uint32(h))
}

// --------------------------------------------------------------------------
// Buffers
// --------------------------------------------------------------------------

// CreateBuffer creates a buffer with one reference.
func (r *Renderer) CreateBuffer(c gpu.BufferCreation) (*Buffer, error) {
	i := r.buffers.Obtain()
	if i == pool.InvalidIndex {
		return nil, fmt.Errorf("%w: buffers (capacity %d)", ErrPoolExhausted, r.buffers.Capacity())
	}
	h, err := r.device.CreateBuffer(c)
	if err != nil {
		r.buffers.Release(i)
		return nil, fmt.Errorf("renderer: buffer %q: %w", c.Name, err)
	}
	desc, err := r.device.QueryBuffer(h)
	if err != nil {
		r.device.DestroyBuffer(h)
		r.buffers.Release(i)
		return nil, fmt.Errorf("renderer: buffer %q: %w", c.Name, err)
	}
	b := r.buffers.Access(i)
	*b = Buffer{handle: BufferHandle(i), gpu: h, desc: desc, refs: 1}
	if c.Name != "" {
		r.cache.buffers[c.Name] = b.handle
	}
	return b, nil
}

// RetainBuffer adds a reference.
func (r *Renderer) RetainBuffer(b *Buffer) { b.refs++ }

// DestroyBuffer drops a reference; the buffer is destroyed at zero.
func (r *Renderer) DestroyBuffer(b *Buffer) {
	if b == nil || b.refs <= 0 {
		return
	}
	b.refs--
	if b.refs > 0 {
		return
	}
	r.device.DestroyBuffer(b.gpu)
	if r.cache.buffers[b.desc.Name] == b.handle {
		delete(r.cache.buffers, b.desc.Name)
	}
	r.buffers.Release(uint32(b.handle))
}

// MapBuffer maps size bytes of b at offset; zero size maps the rest. A
// dynamic buffer maps at the current frame's ring offset and needs no
// UnmapBuffer call.
func (r *Renderer) MapBuffer(b *Buffer, offset, size uint32) ([]byte, error) {
	return r.device.MapBuffer(gpu.MapBufferParameters{Buffer: b.gpu, Offset: offset, Size: size})
}

// UnmapBuffer uploads a mapped static buffer.
func (r *Renderer) UnmapBuffer(b *Buffer) error {
	return r.device.UnmapBuffer(b.gpu)
}

// FindBuffer returns the live buffer registered under name, or nil.
func (r *Renderer) FindBuffer(name string) *Buffer {
	h, ok := r.cache.buffers[name]
	if !ok {
		return nil
	}
	return r.BufferByHandle(h)
}

// BufferByHandle returns the live buffer h, or nil.
func (r *Renderer) BufferByHandle(h BufferHandle) *Buffer {
	if !r.buffers.InUse(uint32(h)) {
		return nil
	}
	return r.buffers.Access(uint32(h))
}

// --------------------------------------------------------------------------
// Samplers
// --------------------------------------------------------------------------

// CreateSampler creates a sampler with one reference.
func (r *Renderer) CreateSampler(c gpu.SamplerCreation) (*Sampler, error) {
	i := r.samplers.Obtain()
	if i == pool.InvalidIndex {
		return nil, fmt.Errorf("%w: samplers (capacity %d)", ErrPoolExhausted, r.samplers.Capacity())
	}
	h, err := r.device.CreateSampler(c)
	if err != nil {
		r.samplers.Release(i)
		return nil, fmt.Errorf("renderer: sampler %q: %w", c.Name, err)
	}
	desc, err := r.device.QuerySampler(h)
	if err != nil {
		r.device.DestroySampler(h)
		r.samplers.Release(i)
		return nil, fmt.Errorf("renderer: sampler %q: %w", c.Name, err)
	}
	s := r.samplers.Access(i)
	*s = Sampler{handle: SamplerHandle(i), gpu: h, desc: desc, refs: 1}
	if c.Name != "" {
		r.cache.samplers[c.Name] = s.handle
	}
	return s, nil
}

// RetainSampler adds a reference.
func (r *Renderer) RetainSampler(s *Sampler) { s.refs++ }

// DestroySampler drops a reference; the sampler is destroyed at zero.
func (r *Renderer) DestroySampler(s *Sampler) {
	if s == nil || s.refs <= 0 {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	r.device.DestroySampler(s.gpu)
	if r.cache.samplers[s.desc.Name] == s.handle {
		delete(r.cache.samplers, s.desc.Name)
	}
	r.samplers.Release(uint32(s.handle))
}

// FindSampler returns the live sampler registered under name, or nil.
func (r *Renderer) FindSampler(name string) *Sampler {
	h, ok := r.cache.samplers[name]
	if !ok {
		return nil
	}
	return r.SamplerByHandle(h)
}

// SamplerByHandle returns the live sampler h, or nil.
func (r *Renderer) SamplerByHandle(h SamplerHandle) *Sampler {
	if !r.samplers.InUse(uint32(h)) {
		return nil
	}
	return r.samplers.Access(uint32(h))
}

// --------------------------------------------------------------------------
// Shader effects
// --------------------------------------------------------------------------

// CreateShaderEffect creates a pipeline for every pass of an effect.
func (r *Renderer) CreateShaderEffect(c ShaderEffectCreation) (*ShaderEffect, error) {
	if c.Effect == nil {
		return nil, fmt.Errorf("%w: shader %q has no effect", ErrInvalidCreation, c.Name)
	}
	i := r.shaders.Obtain()
	if i == pool.InvalidIndex {
		return nil, fmt.Errorf("%w: shaders (capacity %d)", ErrPoolExhausted, r.shaders.Capacity())
	}
	pipelines := make([]gpu.PipelineHandle, 0, len(c.Effect.Passes))
	for p := range c.Effect.Passes {
		pass := &c.Effect.Passes[p]
		output := r.device.SwapchainOutput()
		if p < len(c.Outputs) {
			output = c.Outputs[p]
		}
		h, err := r.device.CreatePipeline(pass.PipelineCreation(c.Name+"_"+pass.Name, output))
		if err != nil {
			for _, ph := range pipelines {
				r.device.DestroyPipeline(ph)
			}
			r.shaders.Release(i)
			return nil, fmt.Errorf("renderer: shader %q pass %q: %w", c.Name, pass.Name, err)
		}
		pipelines = append(pipelines, h)
	}
	s := r.shaders.Access(i)
	*s = ShaderEffect{handle: ShaderHandle(i), name: c.Name, effect: c.Effect, pipelines: pipelines, refs: 1}
	if c.Name != "" {
		r.cache.shaders[c.Name] = s.handle
	}
	slogger().Debug("renderer: shader effect created", "shader", c.Name, "passes", len(pipelines))
	return s, nil
}

// RetainShaderEffect adds a reference.
func (r *Renderer) RetainShaderEffect(s *ShaderEffect) { s.refs++ }

// DestroyShaderEffect drops a reference; the pipelines are destroyed at zero.
func (r *Renderer) DestroyShaderEffect(s *ShaderEffect) {
	if s == nil || s.refs <= 0 {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	for _, h := range s.pipelines {
		r.device.DestroyPipeline(h)
	}
	if r.cache.shaders[s.name] == s.handle {
		delete(r.cache.shaders, s.name)
	}
	s.pipelines = nil
	r.shaders.Release(uint32(s.handle))
}

// FindShaderEffect returns the live shader effect registered under name, or nil.
func (r *Renderer) FindShaderEffect(name string) *ShaderEffect {
	h, ok := r.cache.shaders[name]
	if !ok {
		return nil
	}
	return r.ShaderEffectByHandle(h)
}

// ShaderEffectByHandle returns the live shader effect h, or nil.
func (r *Renderer) ShaderEffectByHandle(h ShaderHandle) *ShaderEffect {
	if !r.shaders.InUse(uint32(h)) {
		return nil
	}
	return r.shaders.Access(uint32(h))
}

// --------------------------------------------------------------------------
// Materials
// --------------------------------------------------------------------------

// CreateMaterial creates a resource list for every pass of the material's
// shader and retains the shader. Passes without entries or without
// layout bindings get no resource list.
func (r *Renderer) CreateMaterial(c MaterialCreation) (*Material, error) {
	if c.Shader == nil || c.Shader.refs <= 0 {
		return nil, fmt.Errorf("%w: material %q has no live shader", ErrInvalidCreation, c.Name)
	}
	i := r.materials.Obtain()
	if i == pool.InvalidIndex {
		return nil, fmt.Errorf("%w: materials (capacity %d)", ErrPoolExhausted, r.materials.Capacity())
	}
	lists := make([]gpu.ResourceListHandle, len(c.Shader.pipelines))
	for p := range lists {
		lists[p] = gpu.InvalidResourceList
	}
	destroyLists := func() {
		for _, l := range lists {
			if l.IsValid() {
				r.device.DestroyResourceList(l)
			}
		}
	}
	for p, ph := range c.Shader.pipelines {
		if p >= len(c.Passes) || len(c.Passes[p].Entries) == 0 {
			continue
		}
		desc, err := r.device.QueryPipeline(ph)
		if err != nil || len(desc.ResourceLayouts) == 0 {
			continue
		}
		l, err := r.device.CreateResourceList(gpu.ResourceListCreation{
			Name:    fmt.Sprintf("%s_%d", c.Name, p),
			Layout:  desc.ResourceLayouts[0],
			Entries: c.Passes[p].Entries,
		})
		if err != nil {
			destroyLists()
			r.materials.Release(i)
			return nil, fmt.Errorf("renderer: material %q pass %d: %w", c.Name, p, err)
		}
		lists[p] = l
	}
	r.RetainShaderEffect(c.Shader)
	m := r.materials.Access(i)
	*m = Material{handle: MaterialHandle(i), name: c.Name, shader: c.Shader, lists: lists, refs: 1}
	if c.Name != "" {
		r.cache.materials[c.Name] = m.handle
	}
	return m, nil
}

// RetainMaterial adds a reference.
func (r *Renderer) RetainMaterial(m *Material) { m.refs++ }

// DestroyMaterial drops a reference; at zero the resource lists are
// destroyed and the shader released.
func (r *Renderer) DestroyMaterial(m *Material) {
	if m == nil || m.refs <= 0 {
		return
	}
	m.refs--
	if m.refs > 0 {
		return
	}
	for _, l := range m.lists {
		if l.IsValid() {
			r.device.DestroyResourceList(l)
		}
	}
	r.DestroyShaderEffect(m.shader)
	if r.cache.materials[m.name] == m.handle {
		delete(r.cache.materials, m.name)
	}
	m.lists, m.shader = nil, nil
	r.materials.Release(uint32(m.handle))
}

// FindMaterial returns the live material registered under name, or nil.
func (r *Renderer) FindMaterial(name string) *Material {
	h, ok := r.cache.materials[name]
	if !ok {
		return nil
	}
	return r.MaterialByHandle(h)
}

// MaterialByHandle returns the live material h, or nil.
func (r *Renderer) MaterialByHandle(h MaterialHandle) *Material {
	if !r.materials.InUse(uint32(h)) {
		return nil
	}
	return r.materials.Access(uint32(h))
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// Leak is a resource still referenced at shutdown.
type Leak struct {
	Kind       string
	Name       string
	References int
}

// Shutdown destroys every live resource and returns those that were still
// referenced. Each leak is logged as a warning.
func (r *Renderer) Shutdown() []Leak {
	var leaks []Leak
	report := func(kind, name string, refs int) {
		leaks = append(leaks, Leak{Kind: kind, Name: name, References: refs})
		slogger().Warn("renderer: resource leaked", "kind", kind, "name", name, "references", refs)
	}

	// Materials hold shader references, so they go first.
	r.materials.Each(func(_ pool.Index, m *Material) bool {
		report("material", m.name, m.refs)
		m.refs = 1
		r.DestroyMaterial(m)
		return true
	})
	r.shaders.Each(func(_ pool.Index, s *ShaderEffect) bool {
		report("shader", s.name, s.refs)
		s.refs = 1
		r.DestroyShaderEffect(s)
		return true
	})
	r.samplers.Each(func(_ pool.Index, s *Sampler) bool {
		report("sampler", s.desc.Name, s.refs)
		s.refs = 1
		r.DestroySampler(s)
		return true
	})
	r.buffers.Each(func(_ pool.Index, b *Buffer) bool {
		report("buffer", b.desc.Name, b.refs)
		b.refs = 1
		r.DestroyBuffer(b)
		return true
	})
	r.textures.Each(func(_ pool.Index, t *Texture) bool {
		report("texture", t.desc.Name, t.refs)
		t.refs = 1
		r.DestroyTexture(t)
		return true
	})
	if len(leaks) == 0 {
		slogger().Info("renderer: shutdown complete")
	}
	return leaks
}
