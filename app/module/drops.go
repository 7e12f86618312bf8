package module

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tlbtrace/app/metrics"
)

// DropCounter reports how many records the kernel side discarded because the
// ring buffer was full.
type DropCounter interface {
	Drops() (uint64, error)
}

type dropWatcher struct {
	counter  DropCounter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration
	last     uint64
}

func (this *dropWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(this.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			this.poll()
			return
		case <-ticker.C:
			this.poll()
		}
	}
}

func (this *dropWatcher) poll() {
	total, err := this.counter.Drops()
	if err != nil {
		this.logger.Debug("Failed to read drop counter", zap.Error(err))
		return
	}
	this.metrics.RingDrops.Set(float64(total))
	if total > this.last {
		this.logger.Warn("Ring buffer full, dropped records",
			zap.Uint64("dropped", total-this.last),
			zap.Uint64("total", total))
	}
	this.last = total
}
