// Copyright 2026 Flare ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package wgpu provides the GPU backend over WebGPU compute.
//
// Operations compile to WGSL programs cached per canonical signature;
// device blocks are pooled by allocation shape, and per-array residency is
// reconciled lazily between host and device.
//
// Example:
//
//	arena := tensor.NewArena()
//	be, err := wgpu.New(arena)
//	if err != nil {
//	    // no adapter; fall back to cpu.New(arena)
//	}
package wgpu

import (
	internalwgpu "github.com/flare-ml/flare/internal/backend/wgpu"
	"github.com/flare-ml/flare/internal/tensor"
)

// Backend is the WebGPU backend implementation.
type Backend = internalwgpu.Backend

// Option configures a Backend at construction.
type Option = internalwgpu.Option

// Policy controls device block retention after host reads.
type Policy = internalwgpu.Policy

// Residency policies.
const (
	MinimizeMemory Policy = internalwgpu.MinimizeMemory
	KeepOnDevice   Policy = internalwgpu.KeepOnDevice
)

// WithPolicy overrides the residency policy applied after host reads.
var WithPolicy = internalwgpu.WithPolicy

// New acquires a device context and creates a WebGPU backend allocating
// output arrays from arena.
func New(arena *tensor.Arena, opts ...Option) (*Backend, error) {
	return internalwgpu.New(arena, opts...)
}

// IsAvailable checks whether a WebGPU adapter can be acquired.
func IsAvailable() bool {
	return internalwgpu.IsAvailable()
}
