package tensor

import (
	"testing"
)

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Int32, 4},
		{Uint8, 1},
		{Bool, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
	}
}

func TestUpcast(t *testing.T) {
	tests := []struct {
		a, b, want DataType
	}{
		{Float32, Float32, Float32},
		{Float32, Int32, Float32},
		{Int32, Float32, Float32},
		{Int32, Uint8, Int32},
		{Uint8, Bool, Uint8},
		{Bool, Bool, Bool},
		{Bool, Float32, Float32},
	}

	for _, tt := range tests {
		if got := Upcast(tt.a, tt.b); got != tt.want {
			t.Errorf("Upcast(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{4}, 4},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeComputeStrides(t *testing.T) {
	s := Shape{2, 3, 4}
	strides := s.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Fatalf("%v.ComputeStrides() = %v, want %v", s, strides, want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, -1}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestHostBufferRoundTrip(t *testing.T) {
	f := FromFloat32([]float32{1, 2, 3})
	if f.Len() != 3 || f.DType() != Float32 {
		t.Fatalf("FromFloat32 metadata: len=%d dtype=%s", f.Len(), f.DType())
	}
	if got := f.Float32s(); got[1] != 2 {
		t.Errorf("Float32s()[1] = %v, want 2", got[1])
	}

	i := FromInt32([]int32{-1, 7})
	if got := i.Int32s(); got[0] != -1 || got[1] != 7 {
		t.Errorf("Int32s() = %v", got)
	}

	bo := FromBool([]bool{true, false, true})
	if got := bo.Bools(); !got[0] || got[1] || !got[2] {
		t.Errorf("Bools() = %v", got)
	}
}

func TestHostBufferWidenNarrow(t *testing.T) {
	src := FromInt32([]int32{3, -2, 0})
	widened := src.AsFloat32()
	want := []float32{3, -2, 0}
	for i := range want {
		if widened[i] != want[i] {
			t.Fatalf("AsFloat32() = %v, want %v", widened, want)
		}
	}

	narrowed := HostFromFloat32(widened, Int32)
	if narrowed.DType() != Int32 {
		t.Fatalf("HostFromFloat32 dtype = %s, want int32", narrowed.DType())
	}
	for i, v := range narrowed.Int32s() {
		if v != src.Int32s()[i] {
			t.Errorf("narrowed[%d] = %d, want %d", i, v, src.Int32s()[i])
		}
	}

	b := HostFromFloat32([]float32{0, 1, 2}, Bool)
	got := b.Bools()
	if got[0] || !got[1] || !got[2] {
		t.Errorf("bool narrowing = %v, want [false true true]", got)
	}
}

func TestArenaMakeDispose(t *testing.T) {
	ar := NewArena()

	a, err := ar.Make(Shape{2, 2}, Float32)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if !ar.Live(a.DataID()) {
		t.Fatal("fresh handle not live")
	}
	if ar.LiveCount() != 1 {
		t.Fatalf("LiveCount() = %d, want 1", ar.LiveCount())
	}

	if err := ar.Dispose(a.DataID()); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if ar.Live(a.DataID()) {
		t.Error("disposed handle still live")
	}
	if err := ar.Dispose(a.DataID()); err == nil {
		t.Error("double dispose accepted")
	}
}

func TestArenaGenerationGuard(t *testing.T) {
	ar := NewArena()

	a, err := ar.Make(Shape{4}, Float32)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	stale := a.DataID()
	if err := ar.Dispose(stale); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	// The slot is recycled; the stale handle must not validate against it.
	b, err := ar.Make(Shape{4}, Float32)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if stale == b.DataID() {
		t.Fatal("recycled slot reissued the same handle")
	}
	if ar.Live(stale) {
		t.Error("stale handle reports live after slot reuse")
	}
	if !ar.Live(b.DataID()) {
		t.Error("fresh handle not live")
	}
}
