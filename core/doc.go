// Package core provides the foundational domain types and contracts shared by
// every chatmesh package. It defines:
//
//   - Conversations and their chat mode (the turn-activation policy)
//   - ConversationAgents (participation records binding an agent to a conversation)
//   - Messages exchanged within a conversation
//   - AgentUpdateEvents emitted by the agent pipeline while a turn is in flight
//   - The Service and EventSource contracts consumed by the conversation store
//   - ErrorState slots and the error taxonomy used to fill them
//
// The package intentionally keeps implementation concerns (persistence,
// dispatching, scheduling policy) out of scope, exposing small interfaces so
// backends can be swapped without touching calling code.
package core
