// Copyright 2026 Flare ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend exposes the compute backend contract.
//
// A backend owns the residency state of every array registered with it and
// implements the full operation surface: element-wise math, matrix
// multiplication, reductions, convolution, pooling, data movement, sampling
// and image ingestion.
//
// Example:
//
//	arena := tensor.NewArena()
//	be := cpu.New(arena)
//	x, _ := arena.Make(tensor.Shape{2, 2}, tensor.Float32)
//	_ = be.Register(x.DataID(), x.Shape(), x.DType())
package backend

import (
	"github.com/flare-ml/flare/internal/backend"
)

// Backend is the full operation contract shared by all devices.
type Backend = backend.Backend

// Device identifies a compute device kind.
type Device = backend.Device

// Supported device kinds.
const (
	CPU    Device = backend.CPU
	WebGPU Device = backend.WebGPU
)

// PadMode selects how convolution padding is derived.
type PadMode = backend.PadMode

// Supported padding modes.
const (
	PadValid PadMode = backend.PadValid
	PadSame  PadMode = backend.PadSame
)

// ConvInfo carries the geometry of one convolution or pooling operation.
type ConvInfo = backend.ConvInfo

// ComputeConvInfo derives output geometry for a convolution or pooling op.
var ComputeConvInfo = backend.ComputeConvInfo
