package reactive

import "fmt"

// ErrRenderTimeMutation is raised in dev mode when a state cell is set while
// some instance's render is on the call stack (spec I3/I6).
var ErrRenderTimeMutation = fmt.Errorf("loom: state mutated during render")

// ErrSSRDataMissing is raised when a resource attempts to suspend while its
// owning instance has ssr=true.
var ErrSSRDataMissing = fmt.Errorf("loom: resource suspended during synchronous SSR render")

// HookOrderError reports a state() call whose index is not a prefix of the
// instance's expectedStateIndices (spec I1), e.g. a conditionally-entered
// state() call.
type HookOrderError struct {
	InstanceID string
	Index      int
	Expected   int
}

func (e *HookOrderError) Error() string {
	return fmt.Sprintf("loom: hook order violation in instance %s: state index %d, conditionally called (expected at most %d)", e.InstanceID, e.Index, e.Expected)
}

// HydrationMismatchError reports that server-rendered markup does not match
// the client's first VNode output at the given path.
type HydrationMismatchError struct {
	InstanceID string
	Path       string
	Reason     string
}

func (e *HydrationMismatchError) Error() string {
	return fmt.Sprintf("loom: hydration mismatch in instance %s at %s: %s", e.InstanceID, e.Path, e.Reason)
}

// RenderError wraps a panic or returned error from a component function with
// the offending instance's id.
type RenderError struct {
	InstanceID string
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("loom: render error in instance %s: %v", e.InstanceID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
