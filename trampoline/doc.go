// Package trampoline tracks native-callable function pointers that
// forward into managed code.
//
// A trampoline pointer is created once and handed to native code, which
// may store it and invoke it at any later time from any thread. Nothing
// on the managed side can observe those invocations in advance, so
// pointer lifetime is an external contract: the pointer must outlive
// every native call that might use it.
//
// # Handle Table
//
// The Table maps integer handles to registered callbacks:
//
//	table := trampoline.NewTable()
//
//	// Record a pointer that was handed to native code
//	handle := table.Register("qsort comparator", ptr, target)
//
//	// Check liveness before dispatching an incoming invocation
//	if !table.Live(handle) { ... }
//
//	// Retire the callback
//	table.Invalidate(handle)
//
// # Invalidation
//
// The platform never recycles trampoline slots, so Invalidate cannot
// make the native pointer harmless. What it does is end the managed
// contract: the target reference is released, Live turns false, and a
// dispatch arriving afterwards can be rejected loudly instead of
// running a callback whose owner considers it dead. Handles are never
// reused for the same reason; a retired entry stays resolvable through
// Info so late invocations can be reported by name.
//
// # Observers
//
// Register observers to track callback lifecycle events:
//
//	table.Subscribe(obs) // obs.OnCallbackEvent(Event)
//
// Observers run synchronously on the goroutine that triggered the
// event and must not call back into the Table.
//
// Tables are safe for concurrent use. Registration, liveness checks,
// and invalidation may race freely with native invocations; the
// liveness check is advisory in that window, which is inherent to
// handing raw pointers across the boundary.
package trampoline
