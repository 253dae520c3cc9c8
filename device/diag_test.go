package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiagnosticsObserve(t *testing.T) {
	require := require.New(t)

	var diag Diagnostics
	diag.init()

	require.Equal(time.Duration(0), diag.Average())
	require.Empty(diag.Snapshot())

	diag.observe(0x84, 10*time.Millisecond)
	diag.observe(0x84, 30*time.Millisecond)
	diag.observe(0x2A, 100*time.Millisecond)

	require.Equal(uint64(3), diag.OpCount.Load())
	require.Equal(int64(140*time.Millisecond), diag.TotalDuration.Load())

	avg := diag.Average()
	require.Equal(140*time.Millisecond/3, avg)

	stats := diag.Snapshot()
	require.Len(stats, 2)

	byIns := make(map[byte]OpStat, len(stats))
	for _, st := range stats {
		byIns[st.INS] = st
	}

	require.Equal(uint64(2), byIns[0x84].Count)
	require.Equal(20*time.Millisecond, byIns[0x84].Average)
	require.Equal(uint64(1), byIns[0x2A].Count)
	require.Equal(100*time.Millisecond, byIns[0x2A].Average)
}
