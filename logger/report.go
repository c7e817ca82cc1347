package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	cyclesRun       int64
	fetchErrors     int64
	recordsFetched  int64
	digestsBuilt    int64
	deliveriesOK    int64
	deliveryErrors  int64
	componentWarns  int64
	componentErrors int64
)

func recordWarn(component string) {
	if strings.TrimSpace(component) != "" {
		atomic.AddInt64(&componentWarns, 1)
	}
}

func recordError(component string) {
	if strings.TrimSpace(component) != "" {
		atomic.AddInt64(&componentErrors, 1)
	}
}

// IncrementCycle counts a completed monitoring cycle.
func IncrementCycle() { atomic.AddInt64(&cyclesRun, 1) }

// IncrementFetchError counts an exchange that could not be read.
func IncrementFetchError() { atomic.AddInt64(&fetchErrors, 1) }

// AddRecords counts records returned by the exchange readers.
func AddRecords(n int) { atomic.AddInt64(&recordsFetched, int64(n)) }

// AddDigests counts digests produced by the ranker.
func AddDigests(n int) { atomic.AddInt64(&digestsBuilt, int64(n)) }

// IncrementDelivery counts a delivery attempt by outcome.
func IncrementDelivery(ok bool) {
	if ok {
		atomic.AddInt64(&deliveriesOK, 1)
		return
	}
	atomic.AddInt64(&deliveryErrors, 1)
}

// ReportSnapshot is a point-in-time copy of the cycle counters.
type ReportSnapshot struct {
	Cycles         int64 `json:"cycles"`
	FetchErrors    int64 `json:"fetch_errors"`
	Records        int64 `json:"records"`
	Digests        int64 `json:"digests"`
	Deliveries     int64 `json:"deliveries"`
	DeliveryErrors int64 `json:"delivery_errors"`
	Warnings       int64 `json:"warnings"`
	Errors         int64 `json:"errors"`
}

// Snapshot returns the current counter values.
func Snapshot() ReportSnapshot {
	return ReportSnapshot{
		Cycles:         atomic.LoadInt64(&cyclesRun),
		FetchErrors:    atomic.LoadInt64(&fetchErrors),
		Records:        atomic.LoadInt64(&recordsFetched),
		Digests:        atomic.LoadInt64(&digestsBuilt),
		Deliveries:     atomic.LoadInt64(&deliveriesOK),
		DeliveryErrors: atomic.LoadInt64(&deliveryErrors),
		Warnings:       atomic.LoadInt64(&componentWarns),
		Errors:         atomic.LoadInt64(&componentErrors),
	}
}

// StartReport begins periodic logging of runtime and cycle statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	snap := Snapshot()

	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memMB := int64(0)
	if vm, err := mem.VirtualMemory(); err == nil {
		memMB = int64(vm.Used) / 1024 / 1024
	}

	log.WithComponent("report").WithFields(Fields{
		"cycles":          snap.Cycles,
		"fetch_errors":    snap.FetchErrors,
		"records":         snap.Records,
		"digests":         snap.Digests,
		"deliveries":      snap.Deliveries,
		"delivery_errors": snap.DeliveryErrors,
		"warnings":        snap.Warnings,
		"errors":          snap.Errors,
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       memMB,
	}).Info("runtime report")
}
