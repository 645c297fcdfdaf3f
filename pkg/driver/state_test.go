package driver

import (
	"context"
	"testing"

	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSend returns a send func that appends every line it is given, forced or not, with
// no setoption queuing, standing in for the Transport during whitebox SearchStateMachine tests.
func recordingSend(sent *[]string) func(string, bool) error {
	return func(line string, force bool) error {
		*sent = append(*sent, line)
		return nil
	}
}

func newTestMachine(t *testing.T, cfg Config) (*SearchStateMachine, *[]string, *fakeHub) {
	t.Helper()
	var sent []string
	hub := newFakeHub()
	reg := newOptionRegistry()
	m := newSearchStateMachine(cfg, hub, reg, recordingSend(&sent))
	return m, &sent, hub
}

func TestSearchStateMachine_ColdStart(t *testing.T) {
	// Inactive -> Running issues position + go immediately (the handshake gate lives in the
	// Driver, not the state machine).
	m, sent, _ := newTestMachine(t, Config{})
	n := &fakeGameNode{fen: startposFEN}

	params := NewSearchParams(n, lang.Optional[int]{}, nil)
	err := m.SetSearchDesired(context.Background(), params)

	require.NoError(t, err)
	require.Len(t, *sent, 2)
	assert.Equal(t, "position startpos", (*sent)[0])
	assert.Equal(t, "go infinite", (*sent)[1])
	assert.Same(t, params, m.running)
	assert.EqualValues(t, 1, m.cycle)
}

func TestSearchStateMachine_NormalSearchCompletes(t *testing.T) {
	// S2: bestmove matching the current desire is forwarded.
	m, _, _ := newTestMachine(t, Config{UseMovetime: true})
	n := &fakeGameNode{fen: startposFEN}

	params := NewSearchParams(n, lang.Some(1000), nil)
	require.NoError(t, m.SetSearchDesired(context.Background(), params))

	forward, node := m.HandleBestMove(context.Background(), "bestmove e2e4")

	assert.True(t, forward)
	assert.Same(t, n, node)
	assert.Nil(t, m.running.Node())
}

func TestSearchStateMachine_MidSearchReconfigure(t *testing.T) {
	// S3: Running -> Changing sends exactly one stop; the eventually-arriving bestmove for the
	// old desire is discarded and the new one is launched.
	m, sent, _ := newTestMachine(t, Config{})
	n1 := &fakeGameNode{fen: "fen1"}
	n2 := &fakeGameNode{fen: "fen2"}

	p1 := NewSearchParams(n1, lang.Optional[int]{}, nil)
	require.NoError(t, m.SetSearchDesired(context.Background(), p1))
	*sent = nil

	p2 := NewSearchParams(n2, lang.Optional[int]{}, nil)
	require.NoError(t, m.SetSearchDesired(context.Background(), p2))

	assert.Equal(t, []string{"stop"}, *sent)
	assert.Equal(t, stateChanging, m.state())

	forward, _ := m.HandleBestMove(context.Background(), "bestmove a1a1")
	assert.False(t, forward)
	assert.Same(t, p2, m.running)
	assert.Equal(t, []string{"stop", "position fen fen2", "go infinite"}, *sent)
}

func TestSearchStateMachine_Halt(t *testing.T) {
	// S4: Running -> Ending sends exactly one stop; the arriving bestmove is discarded and no
	// new search is launched.
	m, sent, _ := newTestMachine(t, Config{})
	n := &fakeGameNode{fen: "fen1"}

	p := NewSearchParams(n, lang.Optional[int]{}, nil)
	require.NoError(t, m.SetSearchDesired(context.Background(), p))
	*sent = nil

	require.NoError(t, m.SetSearchDesired(context.Background(), NoSearch))
	assert.Equal(t, []string{"stop"}, *sent)
	assert.Equal(t, stateEnding, m.state())

	forward, _ := m.HandleBestMove(context.Background(), "bestmove a1a1")
	assert.False(t, forward)
	assert.Same(t, NoSearch, m.desired)
	assert.Nil(t, m.running.Node())
	assert.Equal(t, []string{"stop"}, *sent) // no new go emitted
}

func TestSearchStateMachine_OptionDeferredUntilSearchBoundary(t *testing.T) {
	// S5: setoption while running is queued and drained exactly once the search ends.
	hub := newFakeHub()
	reg := newOptionRegistry()
	var sent []string
	send := func(line string, force bool) error {
		if len(line) >= 9 && line[:9] == "setoption" && !force {
			reg.queue(line)
			return nil
		}
		sent = append(sent, line)
		return nil
	}
	m := newSearchStateMachine(Config{}, hub, reg, send)

	n := &fakeGameNode{fen: "fen1"}
	require.NoError(t, m.SetSearchDesired(context.Background(), NewSearchParams(n, lang.Optional[int]{}, nil)))

	require.NoError(t, send("setoption name Hash value 256", false))
	assert.Equal(t, []string{"setoption name Hash value 256"}, reg.pending)

	require.NoError(t, m.SetSearchDesired(context.Background(), NoSearch))
	sent = nil
	m.HandleBestMove(context.Background(), "bestmove a1a1")

	assert.Empty(t, reg.pending)
}

func TestSearchStateMachine_960AutoDetectAffectsMoveEncoding(t *testing.T) {
	// S6: once UCI_Chess960 is recorded as "true", sendDesired uses HistoryChess960.
	m, sent, _ := newTestMachine(t, Config{})
	m.reg.record(nil, "UCI_Chess960", "true")

	n := &fakeGameNode{
		fen:             startposFEN,
		history:         []string{"e1g1"},
		historyChess960: []string{"e1h1"},
	}
	require.NoError(t, m.SetSearchDesired(context.Background(), NewSearchParams(n, lang.Optional[int]{}, nil)))

	// In 960 mode "startpos" is never inferred, even from the standard initial FEN; the native
	// king-captures-rook history encoding is used instead of the classical one.
	assert.Equal(t, "position fen "+startposFEN+" moves e1h1", (*sent)[0])
}

func TestSearchStateMachine_InfoFilter(t *testing.T) {
	m, _, _ := newTestMachine(t, Config{})
	n := &fakeGameNode{fen: "fen1"}

	assert.Equal(t, "no active search", m.filterInfo(false))

	require.NoError(t, m.SetSearchDesired(context.Background(), NewSearchParams(n, lang.Optional[int]{}, nil)))
	assert.Equal(t, "", m.filterInfo(true))

	// Classical engines' transitional info during a pending stop is dropped.
	require.NoError(t, m.SetSearchDesired(context.Background(), NoSearch))
	assert.Equal(t, "transitional info from a classical engine mid-stop", m.filterInfo(false))
	// ... but a leelaish engine's is not.
	assert.Equal(t, "", m.filterInfo(true))
}

func TestSearchStateMachine_ForgetCurrentCycle(t *testing.T) {
	m, _, _ := newTestMachine(t, Config{})
	n := &fakeGameNode{fen: "fen1"}
	require.NoError(t, m.SetSearchDesired(context.Background(), NewSearchParams(n, lang.Optional[int]{}, nil)))

	m.ForgetCurrentCycle()
	assert.Equal(t, "analysis forgotten for this cycle", m.filterInfo(true))
}

func TestSearchStateMachine_DestroyedNodeAbandonsSearch(t *testing.T) {
	m, _, _ := newTestMachine(t, Config{})
	n := &fakeGameNode{fen: "fen1", destroyed: true}

	err := m.SetSearchDesired(context.Background(), NewSearchParams(n, lang.Optional[int]{}, nil))
	require.NoError(t, err)

	assert.Same(t, NoSearch, m.running)
	assert.Same(t, NoSearch, m.desired)
}

func TestSearchStateMachine_SameDesirePreservesIdentityNoOp(t *testing.T) {
	m, sent, _ := newTestMachine(t, Config{})
	n := &fakeGameNode{fen: "fen1"}
	p := NewSearchParams(n, lang.Some(5000), nil)

	require.NoError(t, m.SetSearchDesired(context.Background(), p))
	*sent = nil

	dup := NewSearchParams(n, lang.Some(5000), nil) // structurally identical, distinct pointer
	require.NoError(t, m.SetSearchDesired(context.Background(), dup))

	assert.Empty(t, *sent, "re-asserting the same search must not send stop")
	assert.Same(t, m.running, m.desired)
}
