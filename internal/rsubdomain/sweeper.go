package rsubdomain

import (
	"context"
	"math/rand"
	"time"
)

// sweepInterval is how often the sweeper scans for expired entries;
// finer-grained than retryTimeout so expiries are caught promptly.
const sweepInterval = 100 * time.Millisecond

// sweep is the retry sweeper from spec §4.2: it visits entries older
// than retryTimeout, re-sends with a fresh DNS server and timestamp,
// and releases any entry that has reached maxRetries without a
// result. When outstanding retries exceed throttleThreshold, it adds
// a random micro-sleep between resends, mirroring the original
// engine's is_delay throttle.
func sweep(ctx context.Context, table *slotTable, s *sender) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(table, s)
		}
	}
}

func sweepOnce(table *slotTable, s *sender) {
	slots := table.expired(time.Now(), retryTimeout, 10000)
	throttle := len(slots) > throttleThreshold

	for _, slot := range slots {
		p, ok := table.get(slot)
		if !ok {
			continue
		}
		if p.Retries >= maxRetries {
			table.release(slot)
			continue
		}
		p.Retries++
		s.resend(slot, p)

		if throttle {
			time.Sleep(time.Duration(100+rand.Intn(300)) * time.Microsecond)
		}
	}
}
