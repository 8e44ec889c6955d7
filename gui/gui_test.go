package gui

import "testing"

type fakeMeshUploader struct {
	vertexPayload, indexPayload, meshletPayload []byte
	onReady                                     func()
}

func (u *fakeMeshUploader) UploadMesh(vertexPayload, indexPayload, meshletPayload []byte, onReady func()) error {
	u.vertexPayload, u.indexPayload, u.meshletPayload = vertexPayload, indexPayload, meshletPayload
	u.onReady = onReady
	return nil
}

func (u *fakeMeshUploader) complete() { u.onReady() }

type fakeAtlasUploader struct {
	width, height, format, mipCount uint32
	pixels                          []byte
	onReady                         func(loadedMips uint64)
}

func (u *fakeAtlasUploader) UploadTextureFull(width, height, format, mipCount uint32, pixels []byte, onReady func(loadedMips uint64)) error {
	u.width, u.height, u.format, u.mipCount, u.pixels = width, height, format, mipCount, pixels
	u.onReady = onReady
	return nil
}

func (u *fakeAtlasUploader) complete() { u.onReady(1) }

func newTestOverlay() (*Overlay, *fakeMeshUploader, *fakeAtlasUploader) {
	mesh := &fakeMeshUploader{}
	atlas := &fakeAtlasUploader{}
	return NewOverlay(mesh, atlas), mesh, atlas
}

func TestSetAtlasBecomesReadyOnlyAfterUploadCompletes(t *testing.T) {
	o, _, atlas := newTestOverlay()
	if o.AtlasReady() {
		t.Fatalf("AtlasReady() before any SetAtlas call")
	}

	pixels := make([]byte, 4*4)
	if err := o.SetAtlas(AtlasUpdate{Width: 4, Height: 4, Pixels: pixels}); err != nil {
		t.Fatalf("SetAtlas: %v", err)
	}
	if o.AtlasReady() {
		t.Fatalf("AtlasReady() true before the staged upload completed")
	}

	atlas.complete()
	if !o.AtlasReady() {
		t.Fatalf("AtlasReady() false after the staged upload completed")
	}
}

func TestSetAtlasRejectsMismatchedPixelCount(t *testing.T) {
	o, _, _ := newTestOverlay()
	if err := o.SetAtlas(AtlasUpdate{Width: 4, Height: 4, Pixels: make([]byte, 3)}); err == nil {
		t.Fatalf("mismatched pixel count accepted")
	}
}

func TestSetAtlasRejectsZeroDimensions(t *testing.T) {
	o, _, _ := newTestOverlay()
	if err := o.SetAtlas(AtlasUpdate{Width: 0, Height: 4, Pixels: nil}); err == nil {
		t.Fatalf("zero width accepted")
	}
}

// TestSetAtlasSupersededUploadNeverMarksReady covers the case where the host
// reports two new atlases before the first upload has a chance to complete:
// the stale completion callback must not flip AtlasReady back on for an
// atlas that is no longer current.
func TestSetAtlasSupersededUploadNeverMarksReady(t *testing.T) {
	o, _, atlas := newTestOverlay()

	if err := o.SetAtlas(AtlasUpdate{Width: 2, Height: 2, Pixels: make([]byte, 4)}); err != nil {
		t.Fatalf("first SetAtlas: %v", err)
	}
	staleComplete := atlas.onReady

	if err := o.SetAtlas(AtlasUpdate{Width: 8, Height: 8, Pixels: make([]byte, 64)}); err != nil {
		t.Fatalf("second SetAtlas: %v", err)
	}
	atlas.complete() // completes the *second* upload
	if !o.AtlasReady() || o.atlasWidth != 8 {
		t.Fatalf("second (current) upload did not take effect: ready=%v width=%d", o.AtlasReady(), o.atlasWidth)
	}

	staleComplete(1) // first upload's callback firing late
	if o.atlasWidth != 8 {
		t.Fatalf("stale completion overwrote the current atlas: width=%d", o.atlasWidth)
	}
}

func TestSubmitRejectsEmptyDrawList(t *testing.T) {
	o, _, _ := newTestOverlay()
	if err := o.Submit(DrawList{}, func() {}); err == nil {
		t.Fatalf("empty draw list accepted")
	}
}

func TestSubmitRejectsCommandIndexingPastTheIndexBuffer(t *testing.T) {
	o, _, _ := newTestOverlay()
	list := DrawList{
		Vertices: []Vertex{{}},
		Indices:  []uint32{0, 0, 0},
		Commands: []DrawCommand{{IndexOffset: 1, IndexCount: 5}},
	}
	if err := o.Submit(list, func() {}); err == nil {
		t.Fatalf("out-of-range command accepted")
	}
}

func TestSubmitCoalescesVertexAndIndexIntoOneUpload(t *testing.T) {
	o, mesh, _ := newTestOverlay()
	list := DrawList{
		Vertices: []Vertex{
			{Pos: [2]float32{0, 0}, UV: [2]float32{0, 0}, Color: [4]float32{1, 1, 1, 1}},
			{Pos: [2]float32{1, 0}, UV: [2]float32{1, 0}, Color: [4]float32{1, 1, 1, 1}},
			{Pos: [2]float32{1, 1}, UV: [2]float32{1, 1}, Color: [4]float32{1, 1, 1, 1}},
		},
		Indices:  []uint32{0, 1, 2},
		Commands: []DrawCommand{{Clip: Rect{0, 0, 100, 100}, TextureID: 0, IndexOffset: 0, IndexCount: 3}},
	}

	ready := false
	if err := o.Submit(list, func() { ready = true }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if mesh.meshletPayload != nil {
		t.Fatalf("meshletPayload = %v; want nil (the overlay has no meshlet stream)", mesh.meshletPayload)
	}
	wantVertexBytes := len(list.Vertices) * 32 // 2+2+4 float32 fields = 8 floats = 32 bytes
	if len(mesh.vertexPayload) != wantVertexBytes {
		t.Fatalf("vertex payload = %d bytes; want %d", len(mesh.vertexPayload), wantVertexBytes)
	}
	if len(mesh.indexPayload) != len(list.Indices)*4 {
		t.Fatalf("index payload = %d bytes; want %d", len(mesh.indexPayload), len(list.Indices)*4)
	}

	mesh.complete()
	if !ready {
		t.Fatalf("onReady was not invoked once the upload completed")
	}
}

func TestRectEmpty(t *testing.T) {
	if !(Rect{X0: 5, Y0: 5, X1: 5, Y1: 10}).Empty() {
		t.Fatalf("zero-width rect reported non-empty")
	}
	if (Rect{X0: 0, Y0: 0, X1: 10, Y1: 10}).Empty() {
		t.Fatalf("normal rect reported empty")
	}
}
