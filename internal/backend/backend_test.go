package backend

import (
	"testing"

	"github.com/flare-ml/flare/internal/tensor"
)

func TestComputeConvInfoValid(t *testing.T) {
	info, err := ComputeConvInfo(tensor.Shape{1, 5, 5, 3}, 3, 3, 8, 1, 1, PadValid)
	if err != nil {
		t.Fatalf("ComputeConvInfo: %v", err)
	}
	if info.OutHeight != 3 || info.OutWidth != 3 {
		t.Errorf("valid padding out = %dx%d, want 3x3", info.OutHeight, info.OutWidth)
	}
	if info.PadTop != 0 || info.PadLeft != 0 {
		t.Errorf("valid padding has pad %d,%d", info.PadTop, info.PadLeft)
	}
	if !info.OutShape().Equal(tensor.Shape{1, 3, 3, 8}) {
		t.Errorf("OutShape() = %v", info.OutShape())
	}
	if !info.FilterShape().Equal(tensor.Shape{3, 3, 3, 8}) {
		t.Errorf("FilterShape() = %v", info.FilterShape())
	}
}

func TestComputeConvInfoSame(t *testing.T) {
	info, err := ComputeConvInfo(tensor.Shape{2, 5, 5, 1}, 3, 3, 4, 2, 2, PadSame)
	if err != nil {
		t.Fatalf("ComputeConvInfo: %v", err)
	}
	// Same padding: out = ceil(in / stride).
	if info.OutHeight != 3 || info.OutWidth != 3 {
		t.Errorf("same padding out = %dx%d, want 3x3", info.OutHeight, info.OutWidth)
	}
	// pad_along = (out-1)*stride + filter - in = 2*2 + 3 - 5 = 2, split 1/1.
	if info.PadTop != 1 || info.PadBottom != 1 {
		t.Errorf("same padding split = %d/%d, want 1/1", info.PadTop, info.PadBottom)
	}
}

func TestComputeConvInfoRejects(t *testing.T) {
	if _, err := ComputeConvInfo(tensor.Shape{5, 5, 3}, 3, 3, 8, 1, 1, PadValid); err == nil {
		t.Error("3D input accepted")
	}
	if _, err := ComputeConvInfo(tensor.Shape{1, 5, 5, 3}, 0, 3, 8, 1, 1, PadValid); err == nil {
		t.Error("zero filter accepted")
	}
	if _, err := ComputeConvInfo(tensor.Shape{1, 2, 2, 3}, 5, 5, 8, 1, 1, PadValid); err == nil {
		t.Error("oversized filter accepted")
	}
}

func TestReduceView(t *testing.T) {
	outShape, batch, reduceSize, err := ReduceView(tensor.Shape{2, 3, 4}, []int{2})
	if err != nil {
		t.Fatalf("ReduceView: %v", err)
	}
	if !outShape.Equal(tensor.Shape{2, 3}) || batch != 6 || reduceSize != 4 {
		t.Errorf("ReduceView = %v, %d, %d", outShape, batch, reduceSize)
	}

	outShape, batch, reduceSize, err = ReduceView(tensor.Shape{2, 3, 4}, []int{1, 2})
	if err != nil {
		t.Fatalf("ReduceView: %v", err)
	}
	if !outShape.Equal(tensor.Shape{2}) || batch != 2 || reduceSize != 12 {
		t.Errorf("ReduceView = %v, %d, %d", outShape, batch, reduceSize)
	}
}

func TestReduceViewRejectsOuterAxes(t *testing.T) {
	if _, _, _, err := ReduceView(tensor.Shape{2, 3, 4}, []int{0}); err == nil {
		t.Error("outer axis accepted")
	}
	if _, _, _, err := ReduceView(tensor.Shape{2, 3, 4}, []int{0, 2}); err == nil {
		t.Error("non-contiguous axes accepted")
	}
	if _, _, _, err := ReduceView(tensor.Shape{2, 3}, nil); err == nil {
		t.Error("empty axes accepted")
	}
	if _, _, _, err := ReduceView(tensor.Shape{2, 3}, []int{5}); err == nil {
		t.Error("out-of-range axis accepted")
	}
}
