package store

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"
)

// SourceStore keeps the latest decoded signals of every source. A single mutex serializes
// ingestion and snapshots, so a reader never sees a half-merged record.
type SourceStore struct {
	mu         sync.Mutex
	profiles   map[string]domain.SourceProfile
	staleAfter time.Duration
	records    map[string]*sourceRecord
}

type sourceRecord struct {
	signals    map[string]float64
	lastUpdate time.Time
}

// NewSourceStore creates an empty store. A staleAfter of 0 never excludes a source.
func NewSourceStore(profiles []domain.SourceProfile, staleAfter time.Duration) *SourceStore {
	byId := make(map[string]domain.SourceProfile, len(profiles))
	for _, p := range profiles {
		byId[p.Id] = p
	}
	return &SourceStore{
		profiles:   byId,
		staleAfter: staleAfter,
		records:    map[string]*sourceRecord{},
	}
}

// Ingest merges the decoded fields into the source record, creating it on first use.
// Fields missing from signals keep their previous value.
func (s *SourceStore) Ingest(sourceId string, signals sdi_can.SignalSet, ts time.Time) {
	if len(signals) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sourceId]
	if !ok {
		rec = &sourceRecord{signals: make(map[string]float64, len(signals))}
		s.records[sourceId] = rec
	}
	for name, value := range signals {
		rec.signals[name] = value
	}
	// frames from different readers may arrive out of order
	if ts.After(rec.lastUpdate) {
		rec.lastUpdate = ts
	}
}

// Snapshot returns copies of the live sources ordered by id.
func (s *SourceStore) Snapshot(now time.Time) []domain.SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := slices.Sorted(maps.Keys(s.records))
	states := make([]domain.SourceState, 0, len(ids))
	for _, id := range ids {
		rec := s.records[id]
		if s.isStale(rec, now) {
			continue
		}
		states = append(states, project(id, s.profile(id), rec))
	}
	return states
}

func (s *SourceStore) Remove(sourceId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[sourceId]; !ok {
		return false
	}
	delete(s.records, sourceId)
	return true
}

// Evict drops the sources silent for longer than olderThan and returns their ids.
func (s *SourceStore) Evict(now time.Time, olderThan time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, rec := range s.records {
		if now.Sub(rec.lastUpdate) > olderThan {
			delete(s.records, id)
			evicted = append(evicted, id)
		}
	}
	slices.Sort(evicted)
	return evicted
}

func (s *SourceStore) isStale(rec *sourceRecord, now time.Time) bool {
	return s.staleAfter > 0 && now.Sub(rec.lastUpdate) > s.staleAfter
}

func (s *SourceStore) profile(id string) domain.SourceProfile {
	if p, ok := s.profiles[id]; ok {
		return p
	}
	return domain.SourceProfile{Id: id}
}

func project(id string, profile domain.SourceProfile, rec *sourceRecord) domain.SourceState {
	signals := maps.Clone(rec.signals)
	state := domain.SourceState{
		SourceId:              id,
		Name:                  profile.Name,
		Capacity:              profile.Capacity,
		Voltage:               optional(signals, sdi_can.SIGNAL_SYSTEM_VOLTAGE),
		Current:               optional(signals, sdi_can.SIGNAL_SYSTEM_CURRENT),
		Soc:                   optional(signals, sdi_can.SIGNAL_SYSTEM_SOC),
		Soh:                   optional(signals, sdi_can.SIGNAL_SYSTEM_SOH),
		Temperature:           optional(signals, sdi_can.SIGNAL_AVG_CELL_TEMP),
		ChargeCurrentLimit:    optional(signals, sdi_can.SIGNAL_CHARGE_CURRENT_LIMIT),
		DischargeCurrentLimit: optional(signals, sdi_can.SIGNAL_DISCHARGE_CURRENT_LIMIT),
		AlarmBits:             optionalMask(signals, sdi_can.SIGNAL_ALARM_STATUS),
		ProtectionBits:        optionalMask(signals, sdi_can.SIGNAL_PROTECTION_STATUS),
		Signals:               signals,
		LastUpdate:            rec.lastUpdate,
	}
	if profile.MaxChargeCurrent > 0 {
		maxCharge := profile.MaxChargeCurrent
		state.MaxChargeCurrent = &maxCharge
	}
	return state
}

func optional(signals map[string]float64, name string) *float64 {
	v, ok := signals[name]
	if !ok {
		return nil
	}
	return &v
}

func optionalMask(signals map[string]float64, name string) *uint8 {
	v, ok := signals[name]
	if !ok {
		return nil
	}
	mask := uint8(v)
	return &mask
}

var _ port.SourceStore = (*SourceStore)(nil)
