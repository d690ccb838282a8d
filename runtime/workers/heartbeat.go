package workers

import (
	"chat-relay/abuse"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatWorker periodically logs the relay load and the process footprint.
type HeartbeatWorker struct {
	log      *slog.Logger
	bus      *runtime.EventBus
	bans     *abuse.BanRegistry
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, bus *runtime.EventBus, bans *abuse.BanRegistry, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, bus: bus, bans: bans, interval: interval}
}

// Run logs one heartbeat per interval until ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	attrs := []any{
		"subscribers", w.bus.Subscribers(),
		"published", w.bus.Published(),
		"bans", len(w.bans.Active()),
	}
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "err", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	w.log.Info("Relay heartbeat", attrs...)
}

// selfStats retrieves the resident memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
