// Package service houses concrete implementations of core.Service. The
// interface itself lives in core so the conversation store never depends on a
// concrete backend.
//
// InMemoryService is volatile and suited for tests and demos; the sqlite
// sub-package persists the same contract to disk. Both hand "send to agents"
// requests to an attached Dispatcher, so the agent pipeline can be wired in
// after construction without changing any calling code.
package service
