// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package effect

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("effect: compile shader: %w", err)
	}
	// SPIR-V is a stream of little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// CompileSPIRV compiles the WGSL source of every pass without SPIR-V.
// Passes sharing a source are compiled once.
func (e *Effect) CompileSPIRV() error {
	cache := make(map[string][]uint32)
	for i := range e.Passes {
		p := &e.Passes[i]
		if len(p.SPIRV) > 0 || p.Source == "" {
			continue
		}
		words, ok := cache[p.Source]
		if !ok {
			var err error
			words, err = CompileWGSL(p.Source)
			if err != nil {
				return fmt.Errorf("effect %q pass %q: %w", e.Name, p.Name, err)
			}
			cache[p.Source] = words
		}
		p.SPIRV = words
	}
	return nil
}
