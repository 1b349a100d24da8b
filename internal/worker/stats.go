package worker

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// 延迟直方图范围: 1µs ~ 1min, 3 位有效数字
const (
	minLatencyMicros = 1
	maxLatencyMicros = int64(time.Minute / time.Microsecond)
	sigFigs          = 3
)

// Stats 统计命令执行次数与延迟
type Stats struct {
	mu        sync.Mutex
	startedAt time.Time
	processed int64
	succeeded int64
	failed    int64
	latency   *hdrhistogram.Histogram
}

// StatsSnapshot 统计快照
type StatsSnapshot struct {
	Processed     int64   `json:"processed"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	MeanLatencyMs float64 `json:"meanLatencyMs"`
	P50LatencyMs  float64 `json:"p50LatencyMs"`
	P95LatencyMs  float64 `json:"p95LatencyMs"`
	P99LatencyMs  float64 `json:"p99LatencyMs"`
	MaxLatencyMs  float64 `json:"maxLatencyMs"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// NewStats 创建统计器
func NewStats() *Stats {
	return &Stats{
		startedAt: time.Now(),
		latency:   hdrhistogram.New(minLatencyMicros, maxLatencyMicros, sigFigs),
	}
}

// Record 记录一次命令执行
func (s *Stats) Record(elapsed time.Duration, success bool) {
	micros := elapsed.Microseconds()
	if micros < minLatencyMicros {
		micros = minLatencyMicros
	}
	if micros > maxLatencyMicros {
		micros = maxLatencyMicros
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++
	if success {
		s.succeeded++
	} else {
		s.failed++
	}
	_ = s.latency.RecordValue(micros)
}

// Snapshot 返回当前统计
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Processed:     s.processed,
		Succeeded:     s.succeeded,
		Failed:        s.failed,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.latency.TotalCount() > 0 {
		snap.MeanLatencyMs = s.latency.Mean() / 1000
		snap.P50LatencyMs = float64(s.latency.ValueAtQuantile(50)) / 1000
		snap.P95LatencyMs = float64(s.latency.ValueAtQuantile(95)) / 1000
		snap.P99LatencyMs = float64(s.latency.ValueAtQuantile(99)) / 1000
		snap.MaxLatencyMs = float64(s.latency.Max()) / 1000
	}
	return snap
}

// Uptime 返回启动至今的时长
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startedAt)
}
