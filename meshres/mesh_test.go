package meshres

import "testing"

type fakeUploader struct {
	onReady []func()
}

func (u *fakeUploader) UploadMesh(vertexPayload, indexPayload, meshletPayload []byte, onReady func()) error {
	u.onReady = append(u.onReady, onReady)
	return nil
}

func (u *fakeUploader) completeAll() {
	for _, fn := range u.onReady {
		fn()
	}
	u.onReady = nil
}

func newTestFactory() (*Factory, *fakeUploader) {
	up := &fakeUploader{}
	f := NewFactory(Config{
		BaseBlockLen:      64,
		InitialBlockCount: 4,
		ObjectSize:        12,
		DropLatencyFrames: 2,
	}, up)
	return f, up
}

func triangle() CreateMeshInput {
	return CreateMeshInput{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
	}
}

func TestCreateMeshNotReadyUntilUploadCompletes(t *testing.T) {
	f, up := newTestFactory()

	h, err := f.CreateMesh(triangle())
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}
	if f.IsReady(h) {
		t.Fatalf("mesh ready before upload completed")
	}

	up.completeAll()
	if !f.IsReady(h) {
		t.Fatalf("mesh not ready after upload completed")
	}
}

func TestCreateMeshRejectsMismatchedAttributeLengths(t *testing.T) {
	f, _ := newTestFactory()

	in := triangle()
	in.Normals = [][3]float32{{0, 0, 1}} // wrong length

	if _, err := f.CreateMesh(in); err == nil {
		t.Fatalf("CreateMesh succeeded with mismatched normals length")
	}
}

func TestCreateMeshRejectsEmptyPositions(t *testing.T) {
	f, _ := newTestFactory()
	if _, err := f.CreateMesh(CreateMeshInput{Indices: []uint32{0}}); err == nil {
		t.Fatalf("CreateMesh succeeded with no positions")
	}
}

func TestCreateMeshComputesBoundsWhenNotSupplied(t *testing.T) {
	f, _ := newTestFactory()

	h, err := f.CreateMesh(triangle())
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}
	mesh, ok := f.Get(h)
	if !ok {
		t.Fatalf("Get failed for freshly created mesh")
	}
	if mesh.Bounds.Sphere.Radius <= 0 {
		t.Fatalf("expected a non-zero bounding radius, got %v", mesh.Bounds.Sphere.Radius)
	}
}

func TestDropThenRetireFreesBlocksForReuse(t *testing.T) {
	f, up := newTestFactory()

	h, err := f.CreateMesh(triangle())
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}
	up.completeAll()

	mesh, _ := f.Get(h)
	vertexBlock := mesh.VertexBlock[Position]

	f.Drop(h, 0)
	for frame := uint64(0); frame <= 2; frame++ {
		f.Retire(frame)
	}

	if _, ok := f.Get(h); ok {
		t.Fatalf("dropped+retired handle still resolved")
	}

	h2, err := f.CreateMesh(triangle())
	if err != nil {
		t.Fatalf("CreateMesh after retire: %v", err)
	}
	mesh2, _ := f.Get(h2)
	if mesh2.VertexBlock[Position] != vertexBlock {
		t.Fatalf("expected vertex block reuse %+v, got %+v", vertexBlock, mesh2.VertexBlock[Position])
	}
}

func TestVertexLayoutSubset(t *testing.T) {
	required := VertexLayout(0).With(Position).With(UV0)
	provided := VertexLayout(0).With(Position).With(Normal).With(UV0)

	if !required.IsSubsetOf(provided) {
		t.Fatalf("required layout should be a subset of provided layout")
	}
	if provided.IsSubsetOf(required) {
		t.Fatalf("provided layout (has Normal) should not be a subset of required")
	}
}
