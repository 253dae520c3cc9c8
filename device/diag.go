package device

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Diagnostics contains atomic timing counters for dispatched operations.
// It is an observability component only: control flow never consults it.
//
// Counters can be used as the value of an external gauge or polled over a
// debug interface.
type Diagnostics struct {
	// OpCount indicates the number of operations dispatched.
	OpCount atomic.Uint64
	// TotalDuration indicates the accumulated processing time in nanoseconds.
	TotalDuration atomic.Int64

	// perOp tracks timing per instruction code.
	perOp *xsync.MapOf[byte, *opTiming]
}

type opTiming struct {
	count atomic.Uint64
	total atomic.Int64
}

// OpStat is a per-instruction timing snapshot.
type OpStat struct {
	INS     byte
	Count   uint64
	Average time.Duration
}

func (g *Diagnostics) init() {
	g.perOp = xsync.NewMapOf[byte, *opTiming]()
}

func (g *Diagnostics) observe(ins byte, d time.Duration) {
	g.OpCount.Add(1)
	g.TotalDuration.Add(int64(d))

	t, _ := g.perOp.LoadOrStore(ins, &opTiming{})
	t.count.Add(1)
	t.total.Add(int64(d))
}

// Average returns the mean processing time over all dispatched operations.
func (g *Diagnostics) Average() time.Duration {
	count := g.OpCount.Load()
	if count == 0 {
		return 0
	}

	return time.Duration(g.TotalDuration.Load() / int64(count)) //nolint:gosec
}

// Snapshot returns the per-instruction timing statistics.
func (g *Diagnostics) Snapshot() []OpStat {
	stats := make([]OpStat, 0)
	g.perOp.Range(func(ins byte, t *opTiming) bool {
		count := t.count.Load()
		if count == 0 {
			return true
		}

		stats = append(stats, OpStat{
			INS:     ins,
			Count:   count,
			Average: time.Duration(t.total.Load() / int64(count)), //nolint:gosec
		})

		return true
	})

	return stats
}
