// Package health aggregates readiness checks for the gRPC health service and the HTTP /healthz probe.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// checkTimeout bounds a single check so one hung dependency cannot stall the probe.
const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA authz checker.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc reports a dependency as healthy by returning nil.
type CheckFunc func(ctx context.Context) error

// Report is the outcome of running every check.
type Report struct {
	Serving  bool              `json:"serving"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Monitor runs named readiness checks. With no checks it reports serving.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]CheckFunc)}
}

// Add registers check under name, replacing any previous check with that name. A nil check is ignored.
func (m *Monitor) Add(name string, check CheckFunc) {
	if check == nil {
		return
	}
	m.mu.Lock()
	m.checks[name] = check
	m.mu.Unlock()
}

// AddPinger registers p.PingContext under name. A nil pinger is ignored.
func (m *Monitor) AddPinger(name string, p Pinger) {
	if p == nil {
		return
	}
	m.Add(name, p.PingContext)
}

// AddPolicy registers p.HealthCheck under name. A nil checker is ignored.
func (m *Monitor) AddPolicy(name string, p PolicyChecker) {
	if p == nil {
		return
	}
	m.Add(name, p.HealthCheck)
}

// Names returns the registered check names, sorted.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.checks))
	for n := range m.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Check runs every check concurrently and reports serving only if all pass.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.RLock()
	checks := make(map[string]CheckFunc, len(m.checks))
	for n, c := range m.checks {
		checks[n] = c
	}
	m.mu.RUnlock()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures = make(map[string]string)
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			if err := check(cctx); err != nil {
				mu.Lock()
				failures[name] = err.Error()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(failures) == 0 {
		return Report{Serving: true}
	}
	return Report{Serving: false, Failures: failures}
}
