package chatmode

import (
	"sort"

	"github.com/hupe1980/chatmesh/core"
)

// SortByTurnOrder returns a copy of agents sorted by the turn ordering rule:
// ascending DisplayOrder, ties broken by ascending AddedAt. The sort is
// stable, so agents with identical keys keep their input order. The input
// slice is not modified.
func SortByTurnOrder(agents []core.ConversationAgent) []core.ConversationAgent {
	sorted := core.CloneAgents(agents)
	if sorted == nil {
		return []core.ConversationAgent{}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.AddedAt.Before(b.AddedAt)
	})
	return sorted
}

// enabledIDs returns the ids of enabled agents in input order, skipping exclude.
func enabledIDs(agents []core.ConversationAgent, exclude string) []string {
	ids := []string{}
	for _, a := range agents {
		if a.Enabled && a.ID != exclude {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func findAgent(agents []core.ConversationAgent, id string) (core.ConversationAgent, bool) {
	for _, a := range agents {
		if a.ID == id {
			return a, true
		}
	}
	return core.ConversationAgent{}, false
}
