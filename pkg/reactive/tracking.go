package reactive

// trackingContext is the single active-render state the core consults to
// answer "what instance is rendering right now" and "what context frame is
// active". The teacher's pkg/vango/tracking.go keeps one of these per
// goroutine (via sync.Map plus a goroutine-id scrape from runtime.Stack)
// because its scheduler may render concurrently; loom's scheduler is
// strictly single-threaded (spec §5), so one package-level value suffices —
// the per-goroutine map and its stack-parsing hack have no job to do here.
type trackingContext struct {
	activeInstance *Instance
	activeFrame    *ContextFrame
}

var tracking = &trackingContext{}

// activeInstance returns the instance currently rendering, or nil outside
// any render.
func activeInstance() *Instance {
	return tracking.activeInstance
}

// pushInstance makes i the active instance for the duration of its render
// and returns a restore function.
func pushInstance(i *Instance) (restore func()) {
	prev := tracking.activeInstance
	tracking.activeInstance = i
	return func() { tracking.activeInstance = prev }
}

// activeFrame returns the context frame active during the current render or
// resource continuation.
func activeFrame() *ContextFrame {
	return tracking.activeFrame
}

// pushFrame installs f as the active context frame, returning a restore
// function. Used both around a synchronous render and around each resource
// continuation (spec I9).
func pushFrame(f *ContextFrame) (restore func()) {
	prev := tracking.activeFrame
	tracking.activeFrame = f
	return func() { tracking.activeFrame = prev }
}
