// Package checkpoint persists run state per thread so a run can be resumed.
//
// A Checkpoint holds the full RunState of one thread together with the node
// that runs next. Stores overwrite on save; loading an unknown thread returns
// ErrNotFound and callers start from a fresh state.
//
// Two stores are provided: MemoryStore for single-process use and tests, and
// SQLiteStore for persistence across restarts. KeyedLocker serializes the
// read-modify-write cycle of one thread.
package checkpoint
