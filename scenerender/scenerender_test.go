package scenerender

import "testing"

type recordingBackend struct{ calls []string }

func (r *recordingBackend) BindCameraUBO()              { r.calls = append(r.calls, "BindCameraUBO") }
func (r *recordingBackend) RenderHZBPass()               { r.calls = append(r.calls, "RenderHZBPass") }
func (r *recordingBackend) BuildHZBPyramid()             { r.calls = append(r.calls, "BuildHZBPyramid") }
func (r *recordingBackend) RegenFroxels()                { r.calls = append(r.calls, "RegenFroxels") }
func (r *recordingBackend) BuildLightClusters()          { r.calls = append(r.calls, "BuildLightClusters") }
func (r *recordingBackend) GenerateDepthPrepassDraws()    { r.calls = append(r.calls, "GenerateDepthPrepassDraws") }
func (r *recordingBackend) RenderDepthPrepass()          { r.calls = append(r.calls, "RenderDepthPrepass") }
func (r *recordingBackend) RenderShadowCascades()        { r.calls = append(r.calls, "RenderShadowCascades") }
func (r *recordingBackend) ComputeAO()                   { r.calls = append(r.calls, "ComputeAO") }
func (r *recordingBackend) RenderOpaqueColorPass()       { r.calls = append(r.calls, "RenderOpaqueColorPass") }
func (r *recordingBackend) RenderTransparentPass()       { r.calls = append(r.calls, "RenderTransparentPass") }

func TestRenderFrameFullSequenceWhenStaticCleanAndCameraChanged(t *testing.T) {
	b := &recordingBackend{}
	RenderFrame(b, FrameState{StaticDirty: false, CameraParamsChanged: true})

	want := []string{
		"BindCameraUBO",
		"RenderHZBPass",
		"BuildHZBPyramid",
		"RegenFroxels",
		"BuildLightClusters",
		"GenerateDepthPrepassDraws",
		"RenderDepthPrepass",
		"RenderShadowCascades",
		"ComputeAO",
		"RenderOpaqueColorPass",
		"RenderTransparentPass",
	}
	assertCalls(t, b.calls, want)
}

func TestRenderFrameSkipsHZBPassWhenStaticDirty(t *testing.T) {
	b := &recordingBackend{}
	RenderFrame(b, FrameState{StaticDirty: true, CameraParamsChanged: false})

	for _, call := range b.calls {
		if call == "RenderHZBPass" {
			t.Fatalf("RenderHZBPass was called while StaticDirty=true; want it skipped")
		}
		if call == "RegenFroxels" {
			t.Fatalf("RegenFroxels was called while CameraParamsChanged=false; want it skipped")
		}
	}
	if b.calls[0] != "BindCameraUBO" || b.calls[len(b.calls)-1] != "RenderTransparentPass" {
		t.Fatalf("unexpected call sequence: %v", b.calls)
	}
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("call sequence = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %q; want %q (full sequence: %v)", i, got[i], want[i], got)
		}
	}
}
