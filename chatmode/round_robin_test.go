package chatmode

import (
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Handler        = (*RoundRobin)(nil)
	_ RemovalHandler = (*RoundRobin)(nil)
)

// apply mimics the store: disables first, then enables.
func apply(agents []core.ConversationAgent, intent Intent) []core.ConversationAgent {
	out := core.CloneAgents(agents)
	set := func(id string, on bool) {
		for i := range out {
			if out[i].ID == id {
				out[i].Enabled = on
			}
		}
	}
	for _, id := range intent.ToDisable {
		set(id, false)
	}
	for _, id := range intent.ToEnable {
		set(id, true)
	}
	return out
}

func enabledCount(agents []core.ConversationAgent) int {
	return len(testutil.EnabledSet(agents))
}

func TestRoundRobin_ProgressionAdvances(t *testing.T) {
	agents := testutil.Roster("a1", "a1", "a2", "a3")

	intent := NewRoundRobin().HandleConversationProgression(agents)

	assert.Equal(t, Intent{ToEnable: []string{"a2"}, ToDisable: []string{"a1"}}, intent)
}

func TestRoundRobin_ProgressionWraps(t *testing.T) {
	agents := testutil.Roster("a3", "a1", "a2", "a3")

	intent := NewRoundRobin().HandleConversationProgression(agents)

	assert.Equal(t, Intent{ToEnable: []string{"a1"}, ToDisable: []string{"a3"}}, intent)
}

func TestRoundRobin_ProgressionNoop(t *testing.T) {
	rr := NewRoundRobin()

	assert.True(t, rr.HandleConversationProgression(nil).IsEmpty())
	assert.True(t, rr.HandleConversationProgression(testutil.Roster("a1", "a1")).IsEmpty())
	assert.True(t, rr.HandleConversationProgression(testutil.Roster("", "a1", "a2")).IsEmpty(), "nobody enabled")
}

func TestRoundRobin_ProgressionCyclesThroughAllAgents(t *testing.T) {
	for n := 2; n <= 7; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		// Shuffle the input order; rotation must still follow display order.
		agents := testutil.Roster(ids[0], ids...)
		agents[0], agents[n-1] = agents[n-1], agents[0]

		rr := NewRoundRobin()
		var visited []string
		for step := 0; step < n; step++ {
			intent := rr.HandleConversationProgression(agents)
			require.Len(t, intent.ToEnable, 1)
			visited = append(visited, intent.ToEnable[0])
			agents = apply(agents, intent)
			require.Equal(t, 1, enabledCount(agents))
		}

		expected := append(append([]string{}, ids[1:]...), ids[0])
		assert.Equal(t, expected, visited)
		assert.True(t, testutil.EnabledSet(agents)[ids[0]], "returns to the starting agent after n steps")
	}
}

func TestRoundRobin_ProgressionTieBreaksByAddedAt(t *testing.T) {
	agents := []core.ConversationAgent{
		testutil.NewAgentBuilder("late").Order(0).AddedAfter(2 * time.Minute).Build(),
		testutil.NewAgentBuilder("early").Order(0).AddedAfter(time.Minute).Enabled(true).Build(),
		testutil.NewAgentBuilder("last").Order(1).Build(),
	}

	intent := NewRoundRobin().HandleConversationProgression(agents)

	assert.Equal(t, Intent{ToEnable: []string{"late"}, ToDisable: []string{"early"}}, intent)
}

func TestRoundRobin_AgentAdded(t *testing.T) {
	rr := NewRoundRobin()

	t.Run("empty roster enables newcomer", func(t *testing.T) {
		assert.Equal(t, Intent{ToEnable: []string{"x"}, ToDisable: []string{}}, rr.HandleAgentAdded([]core.ConversationAgent{}, "x"))
	})

	t.Run("nobody enabled enables newcomer", func(t *testing.T) {
		agents := append(testutil.Roster("", "a1"), testutil.NewAgentBuilder("x").Order(1).Build())
		assert.Equal(t, []string{"x"}, rr.HandleAgentAdded(agents, "x").ToEnable)
	})

	t.Run("existing turn holder preserved", func(t *testing.T) {
		agents := append(testutil.Roster("a1", "a1"), testutil.NewAgentBuilder("x").Order(1).Build())
		assert.True(t, rr.HandleAgentAdded(agents, "x").IsEmpty())
	})

	t.Run("newcomer arriving enabled is disabled", func(t *testing.T) {
		agents := append(testutil.Roster("a1", "a1"), testutil.NewAgentBuilder("x").Order(1).Enabled(true).Build())
		intent := rr.HandleAgentAdded(agents, "x")
		assert.Equal(t, Intent{ToEnable: []string{}, ToDisable: []string{"x"}}, intent)
		assert.Equal(t, 1, enabledCount(apply(agents, intent)))
	})

	t.Run("newcomer already sole holder", func(t *testing.T) {
		agents := append(testutil.Roster("", "a1"), testutil.NewAgentBuilder("x").Order(1).Enabled(true).Build())
		assert.True(t, rr.HandleAgentAdded(agents, "x").IsEmpty())
	})
}

func TestRoundRobin_AgentToggle(t *testing.T) {
	rr := NewRoundRobin()

	t.Run("unknown agent", func(t *testing.T) {
		assert.True(t, rr.HandleAgentToggle(testutil.Roster("a1", "a1"), "zz").IsEmpty())
	})

	t.Run("disable sole holder", func(t *testing.T) {
		intent := rr.HandleAgentToggle(testutil.Roster("a1", "a1", "a2"), "a1")
		assert.Equal(t, Intent{ToEnable: []string{}, ToDisable: []string{"a1"}}, intent)
	})

	t.Run("enable swaps holder", func(t *testing.T) {
		intent := rr.HandleAgentToggle(testutil.Roster("a1", "a1", "a2"), "a2")
		assert.Equal(t, Intent{ToEnable: []string{"a2"}, ToDisable: []string{"a1"}}, intent)
	})

	t.Run("enable with nobody enabled", func(t *testing.T) {
		intent := rr.HandleAgentToggle(testutil.Roster("", "a1", "a2"), "a2")
		assert.Equal(t, Intent{ToEnable: []string{"a2"}, ToDisable: []string{}}, intent)
	})
}

func TestRoundRobin_ToggleNeverYieldsMultipleEnabled(t *testing.T) {
	rr := NewRoundRobin()
	ids := []string{"a1", "a2", "a3", "a4"}

	// Every subset of enabled agents, every toggle target.
	for mask := 0; mask < 1<<len(ids); mask++ {
		agents := make([]core.ConversationAgent, len(ids))
		for i, id := range ids {
			agents[i] = testutil.NewAgentBuilder(id).Order(i).Enabled(mask&(1<<i) != 0).Build()
		}
		for _, target := range ids {
			after := apply(agents, rr.HandleAgentToggle(agents, target))
			assert.LessOrEqual(t, enabledCount(after), 1, "mask=%b target=%s", mask, target)
		}
	}
}

func TestRoundRobin_AgentRemoved(t *testing.T) {
	rr := NewRoundRobin()

	t.Run("holder removed elects first remaining", func(t *testing.T) {
		agents := []core.ConversationAgent{
			testutil.NewAgentBuilder("a1").Order(0).Enabled(true).Build(),
			testutil.NewAgentBuilder("a3").Order(2).Build(),
			testutil.NewAgentBuilder("a2").Order(1).Build(),
		}
		assert.Equal(t, []string{"a2"}, rr.HandleAgentRemoved(agents, "a1").ToEnable)
	})

	t.Run("holder remains", func(t *testing.T) {
		assert.True(t, rr.HandleAgentRemoved(testutil.Roster("a1", "a1", "a2"), "a2").IsEmpty())
	})

	t.Run("last agent removed", func(t *testing.T) {
		assert.True(t, rr.HandleAgentRemoved(testutil.Roster("a1", "a1"), "a1").IsEmpty())
	})
}

func TestRoundRobin_Purity(t *testing.T) {
	rr := NewRoundRobin()
	agents := []core.ConversationAgent{
		testutil.NewAgentBuilder("a3").Order(2).Build(),
		testutil.NewAgentBuilder("a1").Order(0).Enabled(true).Build(),
		testutil.NewAgentBuilder("a2").Order(1).Build(),
	}
	before := core.CloneAgents(agents)

	first := rr.HandleConversationProgression(agents)
	second := rr.HandleConversationProgression(agents)
	_ = rr.HandleAgentToggle(agents, "a2")
	_ = rr.HandleAgentAdded(agents, "a3")
	_ = rr.HandleAgentRemoved(agents, "a1")

	assert.Equal(t, before, agents, "input must not be reordered or mutated")
	assert.Equal(t, first, second)

	first.ToEnable[0] = "mutated"
	assert.Equal(t, "a2", second.ToEnable[0], "results must not share backing arrays")
}
