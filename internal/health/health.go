// Package health aggregates liveness and readiness checks for the
// scheduler's backing services (checkpoint store, family directory).
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/family"
)

// Status is the outcome of a single check or of the service overall.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText lets Status render as its name in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name back into a Status.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = StatusHealthy
	case "degraded":
		*s = StatusDegraded
	case "unhealthy":
		*s = StatusUnhealthy
	default:
		return fmt.Errorf("unknown health status %q", text)
	}
	return nil
}

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Component string `json:"component"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Critical  bool   `json:"critical"`
}

// Checker probes one backing component.
type Checker interface {
	Name() string
	// Critical marks checks whose failure makes the service not ready.
	// Non-critical failures only degrade it.
	Critical() bool
	Check(ctx context.Context) CheckResult
}

const (
	checkTimeout     = 5 * time.Second
	degradedLatency  = 100 * time.Millisecond
	directoryTimeout = 3 * time.Second
)

// PingChecker probes a component through its Ping method. Redis stores
// and Postgres directories both satisfy the pinger shape.
type PingChecker struct {
	name     string
	critical bool
	ping     func(ctx context.Context) error
}

// NewPingChecker wraps a ping function as a health check.
func NewPingChecker(name string, critical bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, critical: critical, ping: ping}
}

func (p *PingChecker) Name() string   { return p.name }
func (p *PingChecker) Critical() bool { return p.critical }

func (p *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.ping(ctx)
	elapsed := time.Since(start)
	res := CheckResult{
		Component: p.name,
		Critical:  p.critical,
		LatencyMS: elapsed.Milliseconds(),
	}
	switch {
	case err != nil:
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	case elapsed > degradedLatency:
		res.Status = StatusDegraded
	default:
		res.Status = StatusHealthy
	}
	return res
}

// DirectoryChecker verifies the family directory is readable and has at
// least one active member. An empty roster means no request can ever be
// scheduled, so it is treated as unhealthy rather than degraded.
type DirectoryChecker struct {
	directory family.Directory
}

// NewDirectoryChecker builds a check over the household roster.
func NewDirectoryChecker(directory family.Directory) *DirectoryChecker {
	return &DirectoryChecker{directory: directory}
}

func (d *DirectoryChecker) Name() string   { return "family_directory" }
func (d *DirectoryChecker) Critical() bool { return true }

func (d *DirectoryChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, directoryTimeout)
	defer cancel()

	start := time.Now()
	res := CheckResult{Component: d.Name(), Critical: true}
	members, err := d.directory.Members(ctx)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}
	active := 0
	for _, m := range members {
		if m.Active {
			active++
		}
	}
	if active == 0 {
		res.Status = StatusUnhealthy
		res.Error = "no active family members"
		return res
	}
	res.Status = StatusHealthy
	return res
}

// Report is the aggregate health of the service.
type Report struct {
	Status     Status        `json:"status"`
	Ready      bool          `json:"ready"`
	Components []CheckResult `json:"components"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Manager runs registered checks and folds their results into a single
// report. Checks run sequentially; the set is small and each carries its
// own timeout.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger
}

// NewManager creates an empty health manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register adds a checker. Safe to call while reports are being served.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Report runs every registered check. The overall status is the worst
// critical result; non-critical failures cap the status at degraded.
func (m *Manager) Report(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	rep := Report{Status: StatusHealthy, Ready: true, Timestamp: time.Now().UTC()}
	for _, c := range checkers {
		res := c.Check(ctx)
		rep.Components = append(rep.Components, res)

		if res.Status == StatusHealthy {
			continue
		}
		if m.logger != nil {
			m.logger.Warn("Health check not healthy",
				zap.String("component", res.Component),
				zap.String("status", res.Status.String()),
				zap.String("error", res.Error),
			)
		}
		if res.Critical && res.Status == StatusUnhealthy {
			rep.Status = StatusUnhealthy
			rep.Ready = false
		} else if rep.Status == StatusHealthy {
			rep.Status = StatusDegraded
		}
	}
	return rep
}
