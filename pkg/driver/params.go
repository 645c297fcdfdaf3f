package driver

import (
	"fmt"

	"github.com/seekerror/stdlib/pkg/lang"
)

// GameNode is the hub's game-tree node. The driver never mutates or owns one: it is an
// external collaborator supplying position, history and move legality. Implementations are
// expected to be cheap to hold onto -- the driver retains the pointer inside a SearchParams
// for the lifetime of a search.
type GameNode interface {
	// FEN returns the current position in Forsyth-Edwards notation.
	FEN() string
	// History returns the moves from the game root, in classical castling notation
	// (e.g. e1g1 for white kingside castling).
	History() []string
	// HistoryChess960 returns the moves from the game root, in king-captures-rook
	// notation, for engines running with UCI_Chess960.
	HistoryChess960() []string
	// ValidateMoves returns the subset of candidates that are legal in this position, as a
	// fresh slice. The input slice is never retained or mutated.
	ValidateMoves(candidates []string) []string
	// Destroyed reports whether the hub has invalidated this node.
	Destroyed() bool
}

// SearchParams is an immutable description of a requested search: a position node, an
// optional limit (node count or milliseconds, per Config.UseMovetime) and a restriction to a
// subset of legal moves. Two structurally identical SearchParams are still distinct requests:
// the state machine compares them by pointer identity, while Equal compares structure (see
// DESIGN.md).
type SearchParams struct {
	node        GameNode
	limit       lang.Optional[int]
	searchmoves []string
}

// NoSearch is the canonical empty SearchParams: no node, no limit, no search move
// restriction. It is the only SearchParams value with a nil node, and it is always compared
// by identity against itself -- never construct a second "empty" SearchParams.
var NoSearch = &SearchParams{}

// NewSearchParams constructs a SearchParams for the given node, limit and candidate search
// moves. If node is nil, NoSearch is returned unconditionally -- no allocation, no
// validation. Otherwise searchmoves is validated against node's legal moves and the validated,
// freshly allocated subset is stored; the caller's slice is never retained or mutated.
func NewSearchParams(node GameNode, limit lang.Optional[int], searchmoves []string) *SearchParams {
	if node == nil {
		return NoSearch
	}
	return &SearchParams{
		node:        node,
		limit:       limit,
		searchmoves: node.ValidateMoves(searchmoves),
	}
}

// Node returns the position node, or nil for NoSearch.
func (p *SearchParams) Node() GameNode {
	return p.node
}

// Limit returns the configured search limit, if any.
func (p *SearchParams) Limit() lang.Optional[int] {
	return p.limit
}

// SearchMoves returns the validated search move restriction. Never mutate the result.
func (p *SearchParams) SearchMoves() []string {
	return p.searchmoves
}

// Equal reports whether p and q describe the same requested search in value terms: same
// node, same limit, same search move restriction. This is distinct from identity (==), which
// the state machine uses to decide whether a completed search satisfies the current desire.
func (p *SearchParams) Equal(q *SearchParams) bool {
	if p == q {
		return true
	}
	if p.node != q.node || p.limit != q.limit {
		return false
	}
	if len(p.searchmoves) != len(q.searchmoves) {
		return false
	}
	for i, m := range p.searchmoves {
		if q.searchmoves[i] != m {
			return false
		}
	}
	return true
}

func (p *SearchParams) String() string {
	if p.node == nil {
		return "<no search>"
	}
	if v, ok := p.limit.V(); ok {
		return fmt.Sprintf("{node=%v, limit=%v, searchmoves=%v}", p.node.FEN(), v, p.searchmoves)
	}
	return fmt.Sprintf("{node=%v, limit=<none>, searchmoves=%v}", p.node.FEN(), p.searchmoves)
}
