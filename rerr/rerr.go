// Package rerr defines the typed error kinds used throughout the render core.
//
// Creation APIs (CreateMesh, CreateTexture, CreateMaterial, ...) return these
// so callers can branch on Kind with errors.Is rather than string-matching.
// Steady-state per-frame operations never return these. The frame package
// has no panic path for invariant violations and builds no diagnostic
// snapshot.
package rerr

import "fmt"

// Kind classifies the failure. Each Kind is also a sentinel error so callers
// can write errors.Is(err, rerr.ResourceExhausted).
type Kind int

const (
	// BadInput covers attribute length mismatches, missing required
	// attributes, unsupported formats, and invalid variant descriptors.
	BadInput Kind = iota
	// ResourceExhausted covers a full slot table, a buddy allocator that
	// failed to grow, or a full descriptor pool.
	ResourceExhausted
	// Backend covers pipeline creation failure, surface acquire failure,
	// and device loss.
	Backend
	// Staging covers upload byte-count mismatches and source corruption.
	Staging
	// Lifecycle covers use of a handle after its resource was dropped. This
	// kind is not normally surfaced as an error — draw-time lookups of a
	// dropped resource skip the draw instead (see spec §7) — but is still
	// classified for the rare API that does return it (e.g. explicit lookup).
	Lifecycle
)

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "bad_input"
	case ResourceExhausted:
		return "resource_exhausted"
	case Backend:
		return "backend"
	case Staging:
		return "staging"
	case Lifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

func (k Kind) Error() string {
	return k.String()
}

// Error is a typed, wrapped error carrying the operation that failed and its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New constructs an *Error for the given kind, operation name, and cause.
// The cause may be nil when the kind itself is the complete explanation.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf constructs an *Error with a formatted cause message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
