// Package ledger persists per-backend monthly API usage and enforces quota
// limits at reservation time.
package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/jobs"
)

// warnThreshold is the utilization fraction that surfaces a once-per-period
// warning through the selection report.
const warnThreshold = 0.8

// entry is the persisted state for one metered backend. Fields are accessed
// only while holding mu, giving each backend its own atomic check-and-increment.
type entry struct {
	mu sync.Mutex

	Period    string    `json:"period"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Warned    bool      `json:"warned"`
	LastReset time.Time `json:"last_reset"`
}

// FileLedger is a jobs.Ledger backed by a JSON file. Reservation never allows
// used to exceed limit, and the period rolls over lazily when the wall-clock
// month advances.
type FileLedger struct {
	path    string
	clock   jobs.Clock
	logger  *zap.Logger
	entries map[string]*entry

	// fileMu serializes snapshot writes so concurrent reservations on
	// different backends do not interleave file contents.
	fileMu sync.Mutex
}

// ErrUnknownBackend is returned for backends the ledger was not configured with.
var ErrUnknownBackend = fmt.Errorf("backend is not metered by this ledger")

// NewFileLedger loads (or initializes) a ledger at path for the given
// per-backend monthly limits. An unreadable or corrupt file is treated as "no
// usage recorded yet" rather than fatal.
func NewFileLedger(path string, limits map[string]int, clock jobs.Clock, logger *zap.Logger) (*FileLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &FileLedger{
		path:    path,
		clock:   clock,
		logger:  logger,
		entries: make(map[string]*entry, len(limits)),
	}

	persisted := l.loadFile()
	period := periodFor(clock.Now())
	for backend, limit := range limits {
		e := &entry{Period: period, Limit: limit, LastReset: clock.Now()}
		if prev, ok := persisted[backend]; ok && prev != nil && prev.Period == period {
			e.Used = prev.Used
			e.Warned = prev.Warned
			e.LastReset = prev.LastReset
		}
		// Limit overrides from config win over whatever was persisted.
		l.entries[backend] = e
	}
	return l, nil
}

// loadFile reads the persisted ledger, tolerating absence and corruption.
func (l *FileLedger) loadFile() map[string]*entry {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("ledger unreadable, starting empty", zap.String("path", l.path), zap.Error(err))
		}
		return nil
	}
	var persisted map[string]*entry
	if err := json.Unmarshal(data, &persisted); err != nil {
		l.logger.Warn("ledger corrupt, starting empty", zap.String("path", l.path), zap.Error(err))
		return nil
	}
	return persisted
}

// Remaining returns limit minus calls used in the current period.
func (l *FileLedger) Remaining(backend string) (int, error) {
	e, ok := l.entries[backend]
	if !ok {
		return 0, fmt.Errorf("%s: %w", backend, ErrUnknownBackend)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.rolloverLocked(e)
	remaining := e.Limit - e.Used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TryReserve atomically checks used+n <= limit and increments on success.
// The warn flag is true exactly once per period, when utilization first
// crosses the warning threshold.
func (l *FileLedger) TryReserve(backend string, n int) (bool, bool, error) {
	if n <= 0 {
		return false, false, fmt.Errorf("reserve count must be positive, got %d", n)
	}
	e, ok := l.entries[backend]
	if !ok {
		return false, false, fmt.Errorf("%s: %w", backend, ErrUnknownBackend)
	}

	e.mu.Lock()
	l.rolloverLocked(e)
	if e.Used+n > e.Limit {
		e.mu.Unlock()
		return false, false, nil
	}
	e.Used += n
	warn := false
	if !e.Warned && float64(e.Used) >= warnThreshold*float64(e.Limit) {
		e.Warned = true
		warn = true
	}
	e.mu.Unlock()

	l.persist()
	return true, warn, nil
}

// Status returns a read-only snapshot for reporting.
func (l *FileLedger) Status(backend string) (jobs.QuotaStatus, error) {
	e, ok := l.entries[backend]
	if !ok {
		return jobs.QuotaStatus{}, fmt.Errorf("%s: %w", backend, ErrUnknownBackend)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	l.rolloverLocked(e)

	percent := 0.0
	if e.Limit > 0 {
		percent = math.Round(float64(e.Used)/float64(e.Limit)*1000) / 10
	}
	return jobs.QuotaStatus{
		Backend: backend,
		Used:    e.Used,
		Limit:   e.Limit,
		Percent: percent,
		Period:  e.Period,
		Level:   levelFor(percent),
	}, nil
}

// Backends lists the metered backends this ledger tracks, sorted by name.
func (l *FileLedger) Backends() []string {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rolloverLocked resets the counter when the wall-clock month has advanced.
// Callers must hold e.mu.
func (l *FileLedger) rolloverLocked(e *entry) {
	now := l.clock.Now()
	period := periodFor(now)
	if e.Period == period {
		return
	}
	e.Period = period
	e.Used = 0
	e.Warned = false
	e.LastReset = now
}

// persist writes a best-effort snapshot. Reservation correctness does not
// depend on the write succeeding; a failure costs durability, not safety.
func (l *FileLedger) persist() {
	snapshot := make(map[string]entry, len(l.entries))
	for backend, e := range l.entries {
		e.mu.Lock()
		snapshot[backend] = entry{
			Period:    e.Period,
			Used:      e.Used,
			Limit:     e.Limit,
			Warned:    e.Warned,
			LastReset: e.LastReset,
		}
		e.mu.Unlock()
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		l.logger.Warn("marshal ledger snapshot", zap.Error(err))
		return
	}

	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.logger.Warn("create ledger dir", zap.Error(err))
		return
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		l.logger.Warn("write ledger snapshot", zap.String("path", l.path), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		l.logger.Warn("replace ledger snapshot", zap.String("path", l.path), zap.Error(err))
	}
}

// periodFor renders the calendar-month period identifier (UTC).
func periodFor(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// levelFor maps utilization to the coarse status levels used in reports.
func levelFor(percent float64) string {
	switch {
	case percent >= 90:
		return "critical"
	case percent >= 75:
		return "warning"
	case percent >= 50:
		return "moderate"
	default:
		return "healthy"
	}
}
