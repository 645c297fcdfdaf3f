package driver

// fakeGameNode is a minimal test double for GameNode: a fixed FEN/history/legal-move table per
// test case, not a production board.
type fakeGameNode struct {
	fen             string
	history         []string
	historyChess960 []string
	legal           map[string]bool
	destroyed       bool
}

func (n *fakeGameNode) FEN() string               { return n.fen }
func (n *fakeGameNode) History() []string         { return n.history }
func (n *fakeGameNode) HistoryChess960() []string { return n.historyChess960 }
func (n *fakeGameNode) Destroyed() bool           { return n.destroyed }

func (n *fakeGameNode) ValidateMoves(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if n.legal == nil || n.legal[c] {
			out = append(out, c)
		}
	}
	return out
}

// fakeHub records every callback it receives, for assertion by tests.
type fakeHub struct {
	bestmoves []string
	infos     []string
	errors    []string
	misc      []string

	engineStarted string
	acked         map[string]string
	spawnFailure  error
	sendFailure   error

	cycle, subcycle uint64
}

func newFakeHub() *fakeHub {
	return &fakeHub{acked: map[string]string{}}
}

func (h *fakeHub) ReceiveBestMove(line string, node GameNode) { h.bestmoves = append(h.bestmoves, line) }
func (h *fakeHub) ReceiveInfo(d *Driver, node GameNode, line string) {
	h.infos = append(h.infos, line)
}
func (h *fakeHub) ReceiveError(line string) { h.errors = append(h.errors, line) }
func (h *fakeHub) ReceiveMisc(line string)  { h.misc = append(h.misc, line) }

func (h *fakeHub) AckEngineStart(path string)      { h.engineStarted = path }
func (h *fakeHub) AckSetOption(name, value string) { h.acked[name] = value }
func (h *fakeHub) AlertSpawnFailure(err error)     { h.spawnFailure = err }
func (h *fakeHub) AlertSendFailure(err error)      { h.sendFailure = err }

func (h *fakeHub) Cycle(n uint64)    { h.cycle = n }
func (h *fakeHub) Subcycle(n uint64) { h.subcycle = n }
