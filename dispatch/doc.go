// Package dispatch implements the "send to agents" pipeline. A Dispatcher
// knows the configured agent definitions, and for every enabled participation
// of a conversation it generates a reply with the agent's model, persists it
// as an assistant message and reports progress as core.AgentUpdateEvent
// values (thinking, then complete or error).
//
// Dispatch returns as soon as the turns are scheduled; the turns themselves
// run on background goroutines bounded by Options.MaxConcurrent.
package dispatch
