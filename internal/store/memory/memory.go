// Package memory implements an in-memory Store for tests and single-node runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

const defaultHistoryLimit = 500

type stateKey struct {
	zone   string
	metric types.Metric
}

// Store is an in-memory store.Store implementation. All methods are safe for
// concurrent use.
type Store struct {
	mu           sync.Mutex
	readings     map[stateKey][]types.Reading // chronological
	forecasts    map[string]types.Forecast
	policyStates map[stateKey]types.PolicyState
	openEvents   map[stateKey]*types.ConstraintEvent
	closedEvents []types.ConstraintEvent
	alerts       map[string]types.Alert
	risks        map[string][]types.RiskScore // newest last
	recs         map[string]types.RecommendationSet
	cycles       []types.CycleSummary // newest last
	locks        map[string]time.Time // expiry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		readings:     make(map[stateKey][]types.Reading),
		forecasts:    make(map[string]types.Forecast),
		policyStates: make(map[stateKey]types.PolicyState),
		openEvents:   make(map[stateKey]*types.ConstraintEvent),
		alerts:       make(map[string]types.Alert),
		risks:        make(map[string][]types.RiskScore),
		recs:         make(map[string]types.RecommendationSet),
		locks:        make(map[string]time.Time),
	}
}

func (s *Store) AppendReading(_ context.Context, r types.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stateKey{r.ZoneID, r.Metric}
	s.readings[k] = append(s.readings[k], r)
	// Keep chronological order even if the feed delivers slightly out of order.
	rs := s.readings[k]
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Timestamp.Before(rs[j].Timestamp) })
	return nil
}

func (s *Store) LatestReadings(_ context.Context, zoneID string, metric types.Metric, limit int) ([]types.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.readings[stateKey{zoneID, metric}]
	n := len(rs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.Reading, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, rs[i])
	}
	return out, nil
}

func (s *Store) PutForecast(_ context.Context, f types.Forecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts[f.ZoneID] = f
	return nil
}

func (s *Store) GetForecast(_ context.Context, zoneID string) (*types.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forecasts[zoneID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *Store) GetPolicyState(_ context.Context, zoneID string, metric types.Metric) (*types.PolicyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.policyStates[stateKey{zoneID, metric}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) PutPolicyState(_ context.Context, st types.PolicyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policyStates[stateKey{st.ZoneID, st.Metric}] = st
	return nil
}

func (s *Store) OpenEvent(_ context.Context, ev types.ConstraintEvent) (*types.ConstraintEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stateKey{ev.ZoneID, ev.Metric}
	if existing, ok := s.openEvents[k]; ok {
		if ev.Severity.Above(existing.Severity) {
			existing.Severity = ev.Severity
		}
		cp := *existing
		return &cp, false, nil
	}
	cp := ev
	s.openEvents[k] = &cp
	out := cp
	return &out, true, nil
}

func (s *Store) GetOpenEvent(_ context.Context, zoneID string, metric types.Metric) (*types.ConstraintEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.openEvents[stateKey{zoneID, metric}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *Store) CloseEvent(_ context.Context, zoneID string, metric types.Metric, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stateKey{zoneID, metric}
	ev, ok := s.openEvents[k]
	if !ok {
		return store.ErrNotFound
	}
	ev.EndedAt = &endedAt
	s.closedEvents = append(s.closedEvents, *ev)
	delete(s.openEvents, k)
	return nil
}

func (s *Store) ListEvents(_ context.Context, q store.EventQuery) ([]types.ConstraintEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []types.ConstraintEvent
	if q.State == "" || q.State == "open" {
		for _, ev := range s.openEvents {
			all = append(all, *ev)
		}
	}
	if q.State == "" || q.State == "closed" {
		all = append(all, s.closedEvents...)
	}
	var out []types.ConstraintEvent
	for _, ev := range all {
		if q.ZoneID != "" && ev.ZoneID != q.ZoneID {
			continue
		}
		if q.Severity != "" && ev.Severity != q.Severity {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) PutAlert(_ context.Context, a types.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[a.AlertID]; exists {
		return false, nil
	}
	s.alerts[a.AlertID] = a
	return true, nil
}

func (s *Store) ResolveAlerts(_ context.Context, zoneID string, metric types.Metric, kind types.AlertKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for id, a := range s.alerts {
		if a.Resolved || a.ZoneID != zoneID || a.Kind != kind {
			continue
		}
		if metric != "" && a.Metric != metric {
			continue
		}
		a.Resolved = true
		s.alerts[id] = a
		n++
	}
	return n, nil
}

func (s *Store) ListAlerts(_ context.Context, q store.AlertQuery) ([]types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Alert
	for _, a := range s.alerts {
		if q.ZoneID != "" && a.ZoneID != q.ZoneID {
			continue
		}
		if q.Severity != "" && a.Severity != q.Severity {
			continue
		}
		if q.Kind != "" && a.Kind != q.Kind {
			continue
		}
		if q.Resolved != nil && a.Resolved != *q.Resolved {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].AlertID > out[j].AlertID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) PutRiskScore(_ context.Context, rs types.RiskScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := append(s.risks[rs.ZoneID], rs)
	if len(hist) > defaultHistoryLimit {
		hist = hist[len(hist)-defaultHistoryLimit:]
	}
	s.risks[rs.ZoneID] = hist
	return nil
}

func (s *Store) GetRiskScore(_ context.Context, zoneID string) (*types.RiskScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.risks[zoneID]
	if len(hist) == 0 {
		return nil, store.ErrNotFound
	}
	rs := hist[len(hist)-1]
	return &rs, nil
}

func (s *Store) ListRiskHistory(_ context.Context, zoneID string, limit int) ([]types.RiskScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.risks[zoneID]
	n := len(hist)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.RiskScore, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, hist[i])
	}
	return out, nil
}

func (s *Store) PutRecommendations(_ context.Context, set types.RecommendationSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[set.ZoneID] = set
	return nil
}

func (s *Store) GetRecommendations(_ context.Context, zoneID string) (*types.RecommendationSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.recs[zoneID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &set, nil
}

func (s *Store) PutCycleSummary(_ context.Context, sum types.CycleSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, sum)
	if len(s.cycles) > defaultHistoryLimit {
		s.cycles = s.cycles[len(s.cycles)-defaultHistoryLimit:]
	}
	return nil
}

func (s *Store) LatestCycleSummary(_ context.Context) (*types.CycleSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cycles) == 0 {
		return nil, store.ErrNotFound
	}
	sum := s.cycles[len(s.cycles)-1]
	return &sum, nil
}

func (s *Store) ListCycleSummaries(_ context.Context, limit int) ([]types.CycleSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.cycles)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.CycleSummary, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.cycles[i])
	}
	return out, nil
}

func (s *Store) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, held := s.locks[key]; held && time.Now().Before(exp) {
		return false, nil
	}
	s.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (s *Store) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

func (s *Store) Start(context.Context) error { return nil }
func (s *Store) Stop(context.Context) error  { return nil }
func (s *Store) Ping(context.Context) error  { return nil }
