// Package chatmode implements the turn-activation policies ("chat modes") of
// a conversation.
//
// A policy never mutates state. Each Handler method receives a snapshot of the
// conversation roster and returns an Intent describing which participations to
// enable and which to disable; applying the intent is the caller's job. This
// keeps every policy a pure function that can be tested in isolation.
//
// Two policies ship by default:
//
//   - Manual: returns empty intents, leaving activation entirely to the user
//   - RoundRobin: keeps a single enabled agent and rotates it deterministically
//
// Policies are created by mode name through a Registry. New modes are added by
// registration only:
//
//	chatmode.Register("broadcast", func() chatmode.Handler { return NewBroadcast() })
//	h, err := chatmode.NewHandler(conv.ChatMode)
package chatmode
