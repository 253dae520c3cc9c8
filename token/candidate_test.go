package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSelector(t *testing.T) {
	require := require.New(t)

	_, err := NewSelector(nil)
	require.ErrorIs(err, ErrNoCandidates)

	sel, err := NewSelector([]Candidate{{Name: "alpha"}})
	require.NoError(err)
	require.Equal(1, sel.Len())
	require.Equal("alpha", sel.Current().Name)
}

func TestSelectorRoundRobin(t *testing.T) {
	require := require.New(t)

	candidates := []Candidate{
		{Name: "alpha", PeerHost: "10.0.0.1"},
		{Name: "beta", PeerHost: "10.0.1.1"},
		{Name: "gamma", PeerHost: "10.0.2.1"},
	}
	sel, err := NewSelector(candidates)
	require.NoError(err)

	// every candidate is visited before any repeats, in insertion order
	seen := make(map[string]int)
	for i := 0; i < len(candidates); i++ {
		cand := sel.Next()
		require.Equal(candidates[i].Name, cand.Name)
		seen[cand.Name]++
	}
	require.Len(seen, len(candidates))
	for name, count := range seen {
		require.Equal(1, count, "candidate %s visited more than once in a cycle", name)
	}

	// wraps back to the first candidate
	require.Equal("alpha", sel.Next().Name)
}

func TestSelectorTwoCandidates(t *testing.T) {
	require := require.New(t)

	sel, err := NewSelector([]Candidate{{Name: "A"}, {Name: "B"}})
	require.NoError(err)

	// interface start picks A
	require.Equal("A", sel.Next().Name)
	require.Equal("A", sel.Current().Name)

	// a later disconnect must target B, then wrap to A
	require.Equal("B", sel.Next().Name)
	require.Equal("A", sel.Next().Name)
}

func TestSelectorSingleCandidate(t *testing.T) {
	require := require.New(t)

	sel, err := NewSelector([]Candidate{{Name: "only"}})
	require.NoError(err)

	// degenerates to always reselecting the same candidate
	for i := 0; i < 5; i++ {
		require.Equal("only", sel.Next().Name)
	}
}
