package chatmode

import "github.com/hupe1980/chatmesh/core"

// Manual is the identity policy: it never changes activation, preserving full
// user control.
type Manual struct{}

// NewManual creates a Manual handler.
func NewManual() *Manual { return &Manual{} }

// HandleAgentAdded implements Handler.
func (*Manual) HandleAgentAdded([]core.ConversationAgent, string) Intent { return EmptyIntent() }

// HandleAgentToggle implements Handler.
func (*Manual) HandleAgentToggle([]core.ConversationAgent, string) Intent { return EmptyIntent() }

// HandleConversationProgression implements Handler.
func (*Manual) HandleConversationProgression([]core.ConversationAgent) Intent { return EmptyIntent() }

// HandleAgentRemoved implements RemovalHandler.
func (*Manual) HandleAgentRemoved([]core.ConversationAgent, string) Intent { return EmptyIntent() }
