package reactive

import "fmt"

// ContextID identifies a Context[T] instance for frame lookups.
type ContextID uint64

var nextContextID ContextID

func allocContextID() ContextID {
	nextContextID++
	return nextContextID
}

// ContextFrame is a stack of {ContextID -> value} overlays. Reads walk from
// the innermost overlay outward. Grounded on the teacher's Context[T]/
// CreateContext (pkg/vango/context_api.go), which stores values directly on
// the Owner's parent-chain map; loom factors the walk into this explicit
// value type so it can be captured and reinstalled around an async resource
// continuation (spec I8/I9), which the teacher's owner-walk cannot do since
// it has no standalone representation independent of the owner tree.
type ContextFrame struct {
	parent *ContextFrame
	id     ContextID
	value  any
}

// RootFrame is the empty frame with no overlays.
var RootFrame = (*ContextFrame)(nil)

// With returns a new frame that overlays id->value on top of f.
func (f *ContextFrame) With(id ContextID, value any) *ContextFrame {
	return &ContextFrame{parent: f, id: id, value: value}
}

// Lookup walks the frame innermost-first for id.
func (f *ContextFrame) Lookup(id ContextID) (any, bool) {
	for frame := f; frame != nil; frame = frame.parent {
		if frame.id == id {
			return frame.value, true
		}
	}
	return nil, false
}

// Context[T] is a typed handle producers use to provide and read scoped
// values. Grounded on the teacher's Context[T]/CreateContext/Provider/Use.
type Context[T any] struct {
	id         ContextID
	defaultVal T
	hasDefault bool
}

// CreateContext allocates a new context with no default; Use panics outside
// any Provider if the context carries no default.
func CreateContext[T any]() *Context[T] {
	return &Context[T]{id: allocContextID()}
}

// CreateContextWithDefault allocates a context with a fallback value used
// when no Provider is active.
func CreateContextWithDefault[T any](def T) *Context[T] {
	return &Context[T]{id: allocContextID(), defaultVal: def, hasDefault: true}
}

// Provider returns a new frame with this context bound to value, for the
// caller to push via WithFrame during a child's render.
func (c *Context[T]) Provider(parent *ContextFrame, value T) *ContextFrame {
	return parent.With(c.id, value)
}

// Use reads the context from the currently active frame (spec I9: only
// legal during a render or a resource continuation wrapped with its
// captured frame).
func (c *Context[T]) Use() T {
	frame := activeFrame()
	if frame == nil {
		if c.hasDefault {
			return c.defaultVal
		}
		panic(fmt.Sprintf("loom: context %d read outside a render or resource continuation, with no default", c.id))
	}
	v, ok := frame.Lookup(c.id)
	if !ok {
		if c.hasDefault {
			return c.defaultVal
		}
		panic(fmt.Sprintf("loom: context %d has no active provider and no default", c.id))
	}
	return v.(T)
}

// UseFrame reads the context out of an explicit frame rather than the
// package-global active one; used by the SSR serializer and by resource
// continuations that install their captured frame manually.
func (c *Context[T]) UseFrame(frame *ContextFrame) T {
	v, ok := frame.Lookup(c.id)
	if !ok {
		if c.hasDefault {
			return c.defaultVal
		}
		panic(fmt.Sprintf("loom: context %d has no active provider and no default", c.id))
	}
	return v.(T)
}
