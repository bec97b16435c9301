// Package store implements the ConversationStore: the single owner of
// conversation, message and roster state for a chat client, and the place
// where chat mode policies (package chatmode) are turned into side effects.
//
// Every mutating action follows the same pipeline:
//
//  1. Capture a snapshot of the relevant state under the store lock
//  2. Resolve the conversation's chat mode and build a handler
//  3. Let the handler compute an Intent from the snapshot
//  4. Apply the intent through core.Service, disables strictly before enables
//  5. Update in-memory state after each successful call and notify subscribers
//
// Conversation switches are fenced by a request token minted on every
// selection. Asynchronous continuations compare the token they started with
// against the current one before committing, so results of superseded
// selections are dropped instead of leaking into the new conversation.
package store
