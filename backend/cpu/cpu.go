// Copyright 2026 Flare ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go reference backend.
//
// Every operation runs on host memory; it is the ground truth the GPU
// backend is validated against and the fallback when no adapter exists.
package cpu

import (
	internalcpu "github.com/flare-ml/flare/internal/backend/cpu"
	"github.com/flare-ml/flare/internal/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.Backend

// New creates a CPU backend allocating output arrays from arena.
//
// Example:
//
//	arena := tensor.NewArena()
//	be := cpu.New(arena)
func New(arena *tensor.Arena) *Backend {
	return internalcpu.New(arena)
}
