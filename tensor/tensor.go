// Copyright 2026 Flare ML Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for flare's array types.
//
// The package re-exports the core types backends operate on:
//   - Shape, DataType: logical array geometry and element encoding
//   - HostBuffer: host-side values in their logical encoding
//   - Arena, NDArray, DataID: handle allocation and identity
//
// Example:
//
//	arena := tensor.NewArena()
//	x, err := arena.Make(tensor.Shape{2, 3}, tensor.Float32)
package tensor

import (
	"github.com/flare-ml/flare/internal/tensor"
)

// DataType is the element encoding of an array.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Int32   DataType = tensor.Int32
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Upcast returns the promoted encoding of a mixed-type operation.
func Upcast(a, b DataType) DataType { return tensor.Upcast(a, b) }

// Shape is the dimension vector of an array.
type Shape = tensor.Shape

// HostBuffer holds array values in host memory in their logical encoding.
type HostBuffer = tensor.HostBuffer

// Host buffer constructors.
var (
	NewHost     = tensor.NewHost
	FromFloat32 = tensor.FromFloat32
	FromInt32   = tensor.FromInt32
	FromUint8   = tensor.FromUint8
	FromBool    = tensor.FromBool
)

// DataID is the stable identity of one array's data.
type DataID = tensor.DataID

// NDArray is a logical array handle: shape and encoding plus a data identity.
// Where the values live is the owning backend's concern.
type NDArray = tensor.NDArray

// Arena allocates array handles and tracks their liveness.
type Arena = tensor.Arena

// NewArena creates an empty handle arena.
func NewArena() *Arena { return tensor.NewArena() }
