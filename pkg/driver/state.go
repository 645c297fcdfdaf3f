package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

// searchState is the explicit sum type naming the four positions {running, desired} can occupy.
// It is derived from the triple on demand (see state()) rather than stored redundantly, so the
// two can never drift out of sync with each other.
type searchState int

const (
	stateInactive searchState = iota
	stateRunning
	stateChanging
	stateEnding
)

func (s searchState) String() string {
	switch s {
	case stateInactive:
		return "inactive"
	case stateRunning:
		return "running"
	case stateChanging:
		return "changing"
	case stateEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// SearchStateMachine owns the {running, desired, completed} triple and every transition between
// them. It writes outbound lines through the send func supplied at construction -- never
// directly to a Transport -- so the force/queue discipline has exactly one implementation,
// shared with the Driver's other outbound traffic.
type SearchStateMachine struct {
	cfg  Config
	hub  Hub
	reg  *optionRegistry
	send func(line string, force bool) error
	now  func() time.Time

	running   *SearchParams
	desired   *SearchParams
	completed *SearchParams

	unresolvedStopTime time.Time
	unresolvedStopSet  bool

	suppressCycleInfo lang.Optional[uint64]
	cycle, subcycle   uint64
}

func newSearchStateMachine(cfg Config, hub Hub, reg *optionRegistry, send func(string, bool) error) *SearchStateMachine {
	return &SearchStateMachine{
		cfg:       cfg,
		hub:       hub,
		reg:       reg,
		send:      send,
		now:       time.Now,
		running:   NoSearch,
		desired:   NoSearch,
		completed: NoSearch,
	}
}

// state derives the current searchState from {running, desired}. running.Node == nil always
// means stateInactive, regardless of desired -- a just-forwarded bestmove leaves desired
// pointing at the satisfied request until the hub issues a new one, and that is not itself a
// distinct state (see DESIGN.md).
func (m *SearchStateMachine) state() searchState {
	if m.running.Node() == nil {
		return stateInactive
	}
	if m.desired == m.running {
		return stateRunning
	}
	if m.desired.Node() == nil {
		return stateEnding
	}
	return stateChanging
}

// SetSearchDesired records what the hub now wants searched and reacts accordingly: it launches
// a search immediately if none is active, issues a stop if one is already running, or simply
// replaces the desire if a stop is already outstanding.
func (m *SearchStateMachine) SetSearchDesired(ctx context.Context, params *SearchParams) error {
	switch m.state() {
	case stateInactive:
		m.desired = params
		if params.Node() == nil {
			return nil
		}
		return m.sendDesired(ctx)

	case stateRunning:
		if m.running.Equal(params) {
			// Re-asserting the same search is a no-op. Preserve identity with running so a
			// later bestmove is still recognized as satisfying the desire.
			m.desired = m.running
			return nil
		}
		m.desired = params
		if err := m.send("stop", false); err != nil {
			return err
		}
		if !m.unresolvedStopSet {
			m.unresolvedStopTime = m.now()
			m.unresolvedStopSet = true
		}
		return nil

	case stateChanging, stateEnding:
		// A stop is already outstanding; just replace the desire, no network traffic.
		m.desired = params
		return nil

	default:
		return invariantf("unreachable search state in SetSearchDesired")
	}
}

// HandleBestMove processes a bestmove line arriving from the engine. It returns whether the
// line should be forwarded to the hub, and the node it was searched against if so.
func (m *SearchStateMachine) HandleBestMove(ctx context.Context, line string) (forward bool, node GameNode) {
	st := m.state()
	if st == stateInactive {
		logw.Warningf(ctx, "driver: bestmove with no active search, dropping: %v", line)
		return false, nil
	}

	m.completed = m.running
	m.running = NoSearch
	m.unresolvedStopSet = false

	switch st {
	case stateChanging:
		logw.Debugf(ctx, "driver: bestmove superseded by a new desire, ignoring: %v", line)
		m.drainThenSendDesired(ctx)
		return false, nil

	case stateEnding:
		logw.Debugf(ctx, "driver: bestmove after halt, ignoring: %v", line)
		m.desired = NoSearch
		m.drainThenSendDesired(ctx)
		return false, nil

	case stateRunning:
		logw.Debugf(ctx, "driver: bestmove satisfies the current desire, forwarding: %v", line)
		if err := m.reg.drain(func(queued string) error { return m.send(queued, true) }); err != nil {
			logw.Errorf(ctx, "driver: draining queued options: %v", err)
		}
		return true, m.completed.Node()

	default:
		return false, nil
	}
}

// drainThenSendDesired drains any setoption lines queued during the search that just ended,
// then, if the now-cleared running slot leaves something still desired, launches it. Errors
// from either step are logged, not propagated -- there is no caller synchronously waiting on a
// bestmove-triggered transition.
func (m *SearchStateMachine) drainThenSendDesired(ctx context.Context) {
	if err := m.reg.drain(func(line string) error { return m.send(line, true) }); err != nil {
		logw.Errorf(ctx, "driver: draining queued options: %v", err)
	}
	if err := m.sendDesired(ctx); err != nil {
		logw.Errorf(ctx, "driver: sending next desired search: %v", err)
	}
}

// sendDesired launches the currently desired search. Precondition: running.Node() is nil.
func (m *SearchStateMachine) sendDesired(ctx context.Context) error {
	if m.running.Node() != nil {
		return invariantf("sendDesired called with a search already running")
	}

	node := m.desired.Node()
	if node == nil || node.Destroyed() {
		m.running, m.desired = NoSearch, NoSearch
		return nil
	}

	in960 := m.reg.in960Mode()

	setup := "fen " + node.FEN()
	if !in960 && node.FEN() == startposFEN {
		setup = "startpos"
	}

	history := node.History()
	if in960 {
		history = node.HistoryChess960()
	}

	pos := "position " + setup
	if len(history) > 0 {
		pos += " moves " + strings.Join(history, " ")
	}
	if m.cfg.LogPositions {
		logw.Debugf(ctx, "driver: %v", pos)
	}
	if err := m.send(pos, false); err != nil {
		return err
	}

	goLine := "go infinite"
	if v, ok := m.desired.Limit().V(); ok {
		if m.cfg.UseMovetime {
			goLine = fmt.Sprintf("go movetime %d", v)
		} else {
			goLine = fmt.Sprintf("go nodes %d", v)
		}
	}
	if m.cfg.SearchmovesButtons {
		if sm := m.desired.SearchMoves(); len(sm) > 0 {
			goLine += " searchmoves " + strings.Join(sm, " ")
		}
	}
	if err := m.send(goLine, false); err != nil {
		return err
	}

	m.running = m.desired
	m.suppressCycleInfo = lang.Optional[uint64]{}
	m.cycle++
	m.subcycle++

	if sink, ok := m.hub.(CycleSink); ok {
		sink.Cycle(m.cycle)
		sink.Subcycle(m.subcycle)
	}

	return nil
}

// startposFEN is the Forsyth-Edwards encoding of the standard chess starting position.
const startposFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// filterInfo decides whether an info line should be dropped. It returns the reason the line was
// dropped, or "" if it should be forwarded.
func (m *SearchStateMachine) filterInfo(leelaish bool) string {
	node := m.running.Node()
	suppressed, hasSuppressed := m.suppressCycleInfo.V()

	switch {
	case node == nil:
		return "no active search"
	case node.Destroyed():
		return "node destroyed"
	case !leelaish && m.desired != m.running:
		return "transitional info from a classical engine mid-stop"
	case hasSuppressed && suppressed == m.cycle:
		return "analysis forgotten for this cycle"
	default:
		return ""
	}
}

// ForgetCurrentCycle marks the in-flight cycle's info lines as unwanted, without halting the
// search itself.
func (m *SearchStateMachine) ForgetCurrentCycle() {
	m.suppressCycleInfo = lang.Some(m.cycle)
}

// Running reports the node currently being searched, or nil.
func (m *SearchStateMachine) Running() GameNode {
	return m.running.Node()
}

// UnresolvedStopTime reports when the outstanding stop (if any) was sent.
func (m *SearchStateMachine) UnresolvedStopTime() (time.Time, bool) {
	return m.unresolvedStopTime, m.unresolvedStopSet
}

// Cycle returns the current search-cycle counter.
func (m *SearchStateMachine) Cycle() uint64 {
	return m.cycle
}
