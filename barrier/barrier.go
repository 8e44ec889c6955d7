// Package barrier implements the two-tier usage/barrier tracker (spec
// §4.6): a global tracker recording the last-observed {queue, timeline
// value, access, stage, layout} per subresource, and a per-scope tracker
// that accumulates a recording scope's usage requests before they are
// reconciled against the global tracker on scope submit.
//
// Grounded on gogpu-wgpu's hal/vulkan command encoder (TransitionBuffers/
// TransitionTextures, textureUsageToAccessStageLayout) for the
// access/stage/layout vocabulary and bitmask-flag style, generalized from
// "convert one usage transition to a vk barrier" to "accumulate a scope's
// requests, diff against global state, decide whether a barrier or
// cross-queue ownership transfer is needed." This package never touches an
// actual command buffer — barrier emission here is pure bookkeeping that a
// gpubackend layer turns into real pipeline-barrier calls.
package barrier

import (
	"sort"
	"sync"

	"github.com/ashenforge/rendercore/rerr"
)

// Queue identifies one of the device's queue families.
type Queue int

const (
	QueueMain Queue = iota
	QueueTransfer
	QueueCompute
)

func (q Queue) String() string {
	switch q {
	case QueueMain:
		return "main"
	case QueueTransfer:
		return "transfer"
	case QueueCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Access is a bitmask of memory-access types a usage request performs.
type Access uint32

const (
	AccessTransferRead Access = 1 << iota
	AccessTransferWrite
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentWrite
	AccessHostRead
	AccessHostWrite
)

const accessWriteMask = AccessTransferWrite | AccessShaderWrite | AccessColorAttachmentWrite |
	AccessDepthStencilAttachmentWrite | AccessHostWrite

// IsReadOnly reports whether a has no write bits set. An empty mask (0) counts
// as read-only: a subresource with no recorded prior access has nothing to
// conflict with.
func (a Access) IsReadOnly() bool {
	return a&accessWriteMask == 0
}

// Stage is a bitmask of pipeline stages a usage request executes at.
type Stage uint32

const (
	StageTopOfPipe Stage = 1 << iota
	StageTransfer
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageComputeShader
	StageColorAttachmentOutput
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageHost
	StageBottomOfPipe
	StageAllCommands
)

// Layout is the exclusive image layout a usage request needs. GENERAL is
// compatible with every other layout within one scope (spec §4.6).
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutTransferSrcOptimal
	LayoutTransferDstOptimal
	LayoutShaderReadOnlyOptimal
	LayoutColorAttachmentOptimal
	LayoutDepthStencilAttachmentOptimal
	LayoutPresentSrc
)

// Sharing classifies whether a subresource transfers queue-family ownership
// on a cross-queue access (exclusive) or is readable/writable from any queue
// without a transfer (concurrent).
type Sharing int

const (
	SharingExclusive Sharing = iota
	SharingConcurrent
)

// SubresourceKey identifies one tracked subresource: a (buffer, array
// element) pair, or an (image, array element, mip level) triple — spec
// §4.6's "keyed by" clause. Buffers leave MipLevel at 0.
type SubresourceKey struct {
	Resource     uint64
	ArrayElement uint32
	MipLevel     uint32
	IsImage      bool
}

// GlobalEntry is the last-observed state of one subresource.
type GlobalEntry struct {
	Queue         Queue
	TimelineValue uint64
	Access        Access
	Stage         Stage
	Layout        Layout
}

// GlobalTracker holds the last-observed state of every known subresource
// plus each subresource's sharing mode. Safe for concurrent use; Submit
// holds the tracker's lock for the duration of one scope's reconciliation so
// a subresource touched by two scopes submitted concurrently is resolved in
// a consistent order.
type GlobalTracker struct {
	mu      sync.Mutex
	entries map[SubresourceKey]GlobalEntry
	sharing map[SubresourceKey]Sharing
}

// NewGlobalTracker creates an empty tracker. Subresources default to
// exclusive sharing until SetSharing marks them concurrent.
func NewGlobalTracker() *GlobalTracker {
	return &GlobalTracker{
		entries: make(map[SubresourceKey]GlobalEntry),
		sharing: make(map[SubresourceKey]Sharing),
	}
}

// SetSharing records key's sharing mode, called once at resource-creation
// time.
func (g *GlobalTracker) SetSharing(key SubresourceKey, mode Sharing) {
	g.mu.Lock()
	g.sharing[key] = mode
	g.mu.Unlock()
}

// Entry returns the last-observed state of key, if any is recorded.
func (g *GlobalTracker) Entry(key SubresourceKey) (GlobalEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	return e, ok
}

func (g *GlobalTracker) sharingOf(key SubresourceKey) Sharing {
	if mode, ok := g.sharing[key]; ok {
		return mode
	}
	return SharingExclusive
}

// scopeEntry is one subresource's accumulated usage within a recording
// scope.
type scopeEntry struct {
	access Access
	stage  Stage
	layout Layout
}

// Scope accumulates one command-recording scope's subresource usages before
// Submit reconciles them against a GlobalTracker.
type Scope struct {
	mu      sync.Mutex
	entries map[SubresourceKey]*scopeEntry
}

// NewScope creates an empty recording scope.
func NewScope() *Scope {
	return &Scope{entries: make(map[SubresourceKey]*scopeEntry)}
}

// Use records one access/stage/layout request against key within the scope.
// Repeated reader-after-reader requests with a compatible layout merge for
// free; a layout conflicting with an already-recorded layout is rejected
// unless either is GENERAL (spec §4.6).
func (s *Scope) Use(key SubresourceKey, access Access, stage Stage, layout Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = &scopeEntry{access: access, stage: stage, layout: layout}
		return nil
	}
	if e.layout != layout && e.layout != LayoutGeneral && layout != LayoutGeneral {
		return rerr.Newf(rerr.BadInput, "barrier.Scope.Use",
			"conflicting layouts %d and %d requested for subresource %+v within one scope", e.layout, layout, key)
	}
	e.access |= access
	e.stage |= stage
	if layout != LayoutGeneral {
		e.layout = layout
	}
	return nil
}

// Barrier is one computed pipeline-barrier or queue-ownership-transfer half,
// scoped to the command buffer of Queue. A queue-family ownership transfer
// produces two Barriers — a release recorded on the prior queue and an
// acquire recorded on the new one — each with Ownership set and OtherQueue
// pointing at its counterpart.
type Barrier struct {
	Resource             SubresourceKey
	Queue                Queue
	SrcAccess, DstAccess Access
	SrcStage, DstStage   Stage
	OldLayout, NewLayout Layout
	Ownership            bool
	OtherQueue           Queue
}

// Result is the outcome of reconciling one scope against the global
// tracker: the barriers to record, and the cross-queue waits the
// submission must express as semaphore waits (spec §4.6's "additional
// contract").
type Result struct {
	Barriers        []Barrier
	CrossQueueWaits map[Queue]Stage
}

// Submit reconciles scope's accumulated usages against global, updates
// global in place, and returns the barriers and cross-queue waits the
// submission for queue at timelineValue must express.
func Submit(global *GlobalTracker, scope *Scope, queue Queue, timelineValue uint64) Result {
	global.mu.Lock()
	defer global.mu.Unlock()

	keys := make([]SubresourceKey, 0, len(scope.entries))
	for k := range scope.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Resource != keys[j].Resource {
			return keys[i].Resource < keys[j].Resource
		}
		if keys[i].ArrayElement != keys[j].ArrayElement {
			return keys[i].ArrayElement < keys[j].ArrayElement
		}
		return keys[i].MipLevel < keys[j].MipLevel
	})

	var barriers []Barrier
	waits := make(map[Queue]Stage)

	for _, key := range keys {
		e := scope.entries[key]
		prior, known := global.entries[key]

		layoutChanged := known && prior.Layout != e.layout
		srcStage := prior.Stage
		srcAccess := prior.Access
		if layoutChanged {
			srcStage |= StageTransfer
		}

		ownershipTransfer := known && prior.Queue != queue && global.sharingOf(key) == SharingExclusive

		bothReadsSameLayout := known && !layoutChanged && prior.Access.IsReadOnly() && e.access.IsReadOnly()

		emit := !known || layoutChanged || ownershipTransfer || !bothReadsSameLayout

		switch {
		case ownershipTransfer:
			// Release, recorded on the queue that previously owned the
			// resource: its real access/stage on the src side, NONE/
			// BOTTOM_OF_PIPE on the dst side since only ownership (not a
			// data hazard) crosses this half of the transfer.
			barriers = append(barriers, Barrier{
				Resource: key, Queue: prior.Queue,
				SrcAccess: srcAccess, DstAccess: 0,
				SrcStage: srcStage, DstStage: StageBottomOfPipe,
				OldLayout: prior.Layout, NewLayout: e.layout,
				Ownership: true, OtherQueue: queue,
			})
			// Acquire, recorded on the queue taking ownership: NONE/
			// TOP_OF_PIPE on the src side, its real access/stage on the dst
			// side. The layout transition completes here.
			barriers = append(barriers, Barrier{
				Resource: key, Queue: queue,
				SrcAccess: 0, DstAccess: e.access,
				SrcStage: StageTopOfPipe, DstStage: e.stage,
				OldLayout: prior.Layout, NewLayout: e.layout,
				Ownership: true, OtherQueue: prior.Queue,
			})
			waits[prior.Queue] |= e.stage
		case emit:
			barriers = append(barriers, Barrier{
				Resource: key, Queue: queue,
				SrcAccess: srcAccess, DstAccess: e.access,
				SrcStage: srcStage, DstStage: e.stage,
				OldLayout: prior.Layout, NewLayout: e.layout,
			})
		}

		global.entries[key] = GlobalEntry{
			Queue: queue, TimelineValue: timelineValue,
			Access: e.access, Stage: e.stage, Layout: e.layout,
		}
	}

	return Result{Barriers: barriers, CrossQueueWaits: waits}
}
