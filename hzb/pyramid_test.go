package hzb

import "testing"

func TestNewPyramidRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := NewPyramid(3, 4); err == nil {
		t.Fatalf("NewPyramid(3,4) accepted a non-power-of-two width")
	}
}

func TestNewPyramidMipCountMatchesLog2Ceiling(t *testing.T) {
	p, err := NewPyramid(8, 8)
	if err != nil {
		t.Fatalf("NewPyramid: %v", err)
	}
	// ceil(log2(8)) = 3 reduced mips, plus the base mip itself.
	if p.MipCount() != 4 {
		t.Fatalf("MipCount() = %d; want 4 (base + 3 reductions)", p.MipCount())
	}
	w, h := p.BaseSize()
	if w != 8 || h != 8 {
		t.Fatalf("BaseSize() = %dx%d; want 8x8", w, h)
	}
}

func TestSetBaseRejectsWrongLength(t *testing.T) {
	p, _ := NewPyramid(4, 4)
	if err := p.SetBase(make([]float32, 3)); err == nil {
		t.Fatalf("SetBase accepted a buffer of the wrong length")
	}
}

func TestReductionTakesMinimumOf2x2Footprint(t *testing.T) {
	p, err := NewPyramid(4, 4)
	if err != nil {
		t.Fatalf("NewPyramid: %v", err)
	}
	// Row-major 4x4, values increase left-to-right, top-to-bottom; every
	// 2x2 footprint's minimum is its top-left texel.
	base := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	if err := p.SetBase(base); err != nil {
		t.Fatalf("SetBase: %v", err)
	}

	got := p.SampleMin([2]float32{0, 0}, [2]float32{0.001, 0.001}, 1)
	if got != 1 {
		t.Fatalf("mip 1 texel (0,0) = %v; want 1 (min of {1,2,5,6})", got)
	}

	gotBottomRight := p.SampleMin([2]float32{0.99, 0.99}, [2]float32{1, 1}, 1)
	if gotBottomRight != 11 {
		t.Fatalf("mip 1 bottom-right texel = %v; want 11 (min of {11,12,15,16})", gotBottomRight)
	}
}

func TestSampleMinOverARectReturnsTheGlobalMinimum(t *testing.T) {
	p, _ := NewPyramid(4, 4)
	base := []float32{
		0.9, 0.9, 0.9, 0.9,
		0.9, 0.2, 0.9, 0.9,
		0.9, 0.9, 0.9, 0.9,
		0.9, 0.9, 0.9, 0.9,
	}
	if err := p.SetBase(base); err != nil {
		t.Fatalf("SetBase: %v", err)
	}
	got := p.SampleMin([2]float32{0, 0}, [2]float32{1, 1}, 0)
	if got != 0.2 {
		t.Fatalf("SampleMin over the whole base mip = %v; want 0.2", got)
	}
}

func TestSampleMinClampsOutOfRangeMipToHighestAvailable(t *testing.T) {
	p, _ := NewPyramid(4, 4)
	p.SetBase(make([]float32, 16))
	// Must not panic when asked for a mip beyond what the pyramid holds.
	_ = p.SampleMin([2]float32{0, 0}, [2]float32{1, 1}, 99)
}
