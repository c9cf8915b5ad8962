// Package hook provides the extension pipeline invoked at crawl events.
//
// A hook is any value with a Name method that also implements one or more
// event interfaces: StartHook, PageHook, LinkHook, ErrorHook, SkipHook and
// FinishHook. Embedding Base gives no-op implementations of every event so
// a hook only writes the methods it cares about.
//
// Design decision: We resolve a hook's capabilities once at registration
// instead of asserting interfaces on every event because:
// 1. Dispatch order is fixed up front and matches registration order
// 2. A page event only visits hooks that actually handle it
// 3. The set of events is closed, so a type switch per event is enough
//
// Hooks are isolated from each other and from the engine: a returned error
// or a panic is logged and treated as "no opinion" for that hook only.
package hook
