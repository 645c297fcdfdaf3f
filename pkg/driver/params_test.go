package driver_test

import (
	"testing"

	"github.com/herohde/harbor/pkg/driver"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	fen   string
	legal map[string]bool
}

func (n *node) FEN() string               { return n.fen }
func (n *node) History() []string         { return nil }
func (n *node) HistoryChess960() []string { return nil }
func (n *node) Destroyed() bool           { return false }
func (n *node) ValidateMoves(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if n.legal[c] {
			out = append(out, c)
		}
	}
	return out
}

func TestNewSearchParams_NilNodeReturnsNoSearch(t *testing.T) {
	p := driver.NewSearchParams(nil, lang.Optional[int]{}, nil)
	assert.Same(t, driver.NoSearch, p)
}

func TestNewSearchParams_ValidatesSearchMoves(t *testing.T) {
	n := &node{fen: "fen1", legal: map[string]bool{"e2e4": true, "d2d4": true}}
	p := driver.NewSearchParams(n, lang.Optional[int]{}, []string{"e2e4", "a2a3", "d2d4"})

	require.NotSame(t, driver.NoSearch, p)
	assert.ElementsMatch(t, []string{"e2e4", "d2d4"}, p.SearchMoves())
}

func TestSearchParams_EqualIsStructuralNotIdentity(t *testing.T) {
	n := &node{fen: "fen1", legal: map[string]bool{"e2e4": true}}
	a := driver.NewSearchParams(n, lang.Some(1000), []string{"e2e4"})
	b := driver.NewSearchParams(n, lang.Some(1000), []string{"e2e4"})

	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
}

func TestSearchParams_EqualDetectsDifference(t *testing.T) {
	n := &node{fen: "fen1", legal: map[string]bool{"e2e4": true, "d2d4": true}}
	a := driver.NewSearchParams(n, lang.Some(1000), []string{"e2e4"})
	b := driver.NewSearchParams(n, lang.Some(2000), []string{"e2e4"})
	c := driver.NewSearchParams(n, lang.Some(1000), []string{"d2d4"})

	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestNoSearch_NodeIsNil(t *testing.T) {
	assert.Nil(t, driver.NoSearch.Node())
	_, ok := driver.NoSearch.Limit().V()
	assert.False(t, ok)
}
