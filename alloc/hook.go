package alloc

// A HookPos names a position in the dispatch flow where hooks fire.
type HookPos struct {
	Name string
}

// Hook positions of the dispatcher.
var (
	// HookPosAllocate triggers after an allocation request is served.
	HookPosAllocate = &HookPos{Name: "Allocate"}

	// HookPosAllocateFail triggers when the serving primitive returns nil.
	HookPosAllocateFail = &HookPos{Name: "AllocateFail"}

	// HookPosFree triggers before a buffer is handed to the free slot.
	HookPosFree = &HookPos{Name: "Free"}
)

// An Event describes one dispatched request.
type Event struct {
	// ID uniquely identifies the event across dispatchers.
	ID string

	// Size is the number of bytes requested, or released for free events.
	Size int

	// Site is the provenance the caller supplied, passed through unmodified.
	Site CallSite

	// Serving names the variant that served the request.
	Serving string
}

// HookCtx holds all the information about the site that a hook is
// triggered.
type HookCtx struct {
	Domain *Dispatcher
	Pos    *HookPos
	Event  Event
}

// Hook is a short piece of program that a dispatcher invokes when it
// dispatches a request. Hooks observe; they cannot alter the result.
type Hook interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx)
}

// Hookable defines an object that accepts Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// A HookableBase provides hook bookkeeping for types that implement the
// Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, registered := range h.hookList {
		if registered == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
