// Package ledger keeps the durable record of deviating stations and their
// remediation status, keyed by scope.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"pricecheck/pkg/model"
)

var (
	ErrScopeNotFound   = errors.New("scope not found in ledger")
	ErrStationNotFound = errors.New("station not found in ledger")
	ErrTransition      = errors.New("invalid status transition")
)

// Ledger serializes access to a Backend. Backend failures are logged and the
// state is kept in memory; a failed save is retried with the next mutation.
type Ledger struct {
	mu      sync.Mutex
	backend Backend
	log     *slog.Logger
	doc     model.LedgerDocument
	dirty   bool
	now     func() time.Time
}

func New(b Backend, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{backend: b, log: log, doc: emptyDoc(), now: func() time.Time { return time.Now().UTC() }}
}

func (l *Ledger) reload() {
	if l.dirty {
		return
	}
	doc, err := l.backend.Load()
	if err != nil {
		l.log.Warn("ledger load failed, using last known state", "error", err)
		return
	}
	l.doc = doc
}

func (l *Ledger) persist() error {
	if err := l.backend.Save(l.doc); err != nil {
		l.dirty = true
		l.log.Warn("ledger save failed, keeping changes in memory", "error", err)
		return err
	}
	l.dirty = false
	return nil
}

// LoadAll returns a copy of the whole ledger.
func (l *Ledger) LoadAll() model.LedgerDocument {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()
	return copyDoc(l.doc)
}

// SaveAll replaces the whole ledger.
func (l *Ledger) SaveAll(doc model.LedgerDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc = copyDoc(doc)
	return l.persist()
}

// Upsert replaces the entry stored under key. The entry's scope fields are
// taken from key.
func (l *Ledger) Upsert(key model.ScopeKey, entry model.LedgerEntry) error {
	if key.IsZero() {
		return fmt.Errorf("upsert: %w", ErrScopeNotFound)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()
	entry.ScopeKey = key
	entry.Mode = key.Mode()
	now := l.now()
	if entry.SavedAt.IsZero() {
		entry.SavedAt = now
	}
	entry.LastUpdated = now
	entry.Stations = append([]model.StationRecord(nil), entry.Stations...)
	l.doc.Sites[key.String()] = entry
	_ = l.persist()
	return nil
}

// Entry returns the entry stored under key.
func (l *Ledger) Entry(key model.ScopeKey) (model.LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()
	e, ok := l.doc.Sites[key.String()]
	if !ok {
		return model.LedgerEntry{}, false
	}
	return copyEntry(e), true
}

// FindStation searches every scope, in key order, for pfid.
func (l *Ledger) FindStation(pfid string) (model.ScopeKey, model.StationRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()
	key, idx := l.find(pfid)
	if idx < 0 {
		return model.ScopeKey{}, model.StationRecord{}, false
	}
	e := l.doc.Sites[key]
	return e.ScopeKey, e.Stations[idx], true
}

func (l *Ledger) find(pfid string) (string, int) {
	keys := make([]string, 0, len(l.doc.Sites))
	for k := range l.doc.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if i := indexOf(l.doc.Sites[k].Stations, pfid); i >= 0 {
			return k, i
		}
	}
	return "", -1
}

func indexOf(recs []model.StationRecord, pfid string) int {
	for i, r := range recs {
		if r.PFID == pfid {
			return i
		}
	}
	return -1
}

// UpdateStatus records an attempt outcome for pfid within key. A zero key
// looks the station up across all scopes.
func (l *Ledger) UpdateStatus(pfid string, status model.RemediationStatus, detail string, key model.ScopeKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()

	var (
		k   = key.String()
		idx = -1
	)
	if key.IsZero() {
		k, idx = l.find(pfid)
		if idx < 0 {
			return fmt.Errorf("%s: %w", pfid, ErrStationNotFound)
		}
	} else {
		e, ok := l.doc.Sites[k]
		if !ok {
			return fmt.Errorf("%s: %w", k, ErrScopeNotFound)
		}
		if idx = indexOf(e.Stations, pfid); idx < 0 {
			return fmt.Errorf("%s in %s: %w", pfid, k, ErrStationNotFound)
		}
	}

	e := l.doc.Sites[k]
	rec := e.Stations[idx]
	if !rec.Status.CanTransition(status) {
		return fmt.Errorf("%s: %s -> %s: %w", pfid, rec.Status, status, ErrTransition)
	}
	now := l.now()
	rec.Status = status
	rec.Detail = detail
	rec.LastAttempt = &now
	e.Stations = append([]model.StationRecord(nil), e.Stations...)
	e.Stations[idx] = rec
	e.LastUpdated = now
	l.doc.Sites[k] = e
	_ = l.persist()
	return nil
}

// RemoveIfComplete deletes key's entry when every station is accepted and
// reports whether it did.
func (l *Ledger) RemoveIfComplete(key model.ScopeKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()
	k := key.String()
	e, ok := l.doc.Sites[k]
	if !ok {
		return false, fmt.Errorf("%s: %w", k, ErrScopeNotFound)
	}
	if !e.Complete() {
		return false, nil
	}
	delete(l.doc.Sites, k)
	_ = l.persist()
	l.log.Info("scope complete, removed from ledger", "scope", k)
	return true, nil
}

// Summaries describes every scope in the ledger, in key order.
func (l *Ledger) Summaries() []model.ScopeSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload()
	keys := make([]string, 0, len(l.doc.Sites))
	for k := range l.doc.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.ScopeSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, l.doc.Sites[k].Summary(k))
	}
	return out
}

func copyEntry(e model.LedgerEntry) model.LedgerEntry {
	e.Stations = append([]model.StationRecord(nil), e.Stations...)
	e.CorrectSchedule = append(model.Schedule(nil), e.CorrectSchedule...)
	return e
}

func copyDoc(d model.LedgerDocument) model.LedgerDocument {
	out := emptyDoc()
	for k, e := range d.Sites {
		out.Sites[k] = copyEntry(e)
	}
	return out
}
