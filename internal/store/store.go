// internal/store/store.go
//
// Package store persists user-authored documents (rules, alerts, per-repo
// knowledge) and the sync snapshot as JSON files under the data directory.
// Writes go through a temp file and rename so readers never observe a
// partial document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github-dashboard/internal/model"
)

// ErrNotFound is returned when a rule, alert, or knowledge entry does not
// exist.
var ErrNotFound = errors.New("not found")

const (
	snapshotFile  = "snapshot.json"
	rulesFile     = "rules.json"
	alertsFile    = "alerts.json"
	knowledgeFile = "knowledge.json"
)

// Store is a file-backed document store. All methods are safe for
// concurrent use; a single mutex serializes every read and write, which is
// plenty for single-user documents of this size.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New opens (and creates if needed) the data directory.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Snapshot loads the last saved sync snapshot. ok is false when no snapshot
// has been written yet.
func (s *Store) Snapshot() (model.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap model.Snapshot
	ok, err := s.read(snapshotFile, &snap)
	return snap, ok, err
}

// SaveSnapshot replaces the stored snapshot.
func (s *Store) SaveSnapshot(snap model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(snapshotFile, snap)
}

// Rules returns all stored rules in insertion order.
func (s *Store) Rules() ([]model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRules()
}

// CreateRule assigns an ID and timestamps and appends the rule. A rule
// created without an explicit enabled flag starts enabled.
func (s *Store) CreateRule(rule model.Rule) (model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.loadRules()
	if err != nil {
		return model.Rule{}, err
	}

	now := s.now()
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rules = append(rules, rule)

	if err := s.write(rulesFile, rules); err != nil {
		return model.Rule{}, err
	}
	return rule, nil
}

// RulePatch carries the updatable fields of a rule. Nil fields are left
// unchanged.
type RulePatch struct {
	Name       *string               `json:"name"`
	Scope      *string               `json:"scope"`
	Conditions *model.RuleConditions `json:"conditions"`
	Actions    *model.RuleActions    `json:"actions"`
	Enabled    *bool                 `json:"enabled"`
}

// UpdateRule applies a partial update to the rule with the given ID.
func (s *Store) UpdateRule(id string, patch RulePatch) (model.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.loadRules()
	if err != nil {
		return model.Rule{}, err
	}

	for i := range rules {
		if rules[i].ID != id {
			continue
		}
		if patch.Name != nil {
			rules[i].Name = *patch.Name
		}
		if patch.Scope != nil {
			rules[i].Scope = *patch.Scope
		}
		if patch.Conditions != nil {
			rules[i].Conditions = *patch.Conditions
		}
		if patch.Actions != nil {
			rules[i].Actions = *patch.Actions
		}
		if patch.Enabled != nil {
			rules[i].Enabled = *patch.Enabled
		}
		rules[i].UpdatedAt = s.now()

		if err := s.write(rulesFile, rules); err != nil {
			return model.Rule{}, err
		}
		return rules[i], nil
	}
	return model.Rule{}, ErrNotFound
}

// DeleteRule removes the rule with the given ID.
func (s *Store) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules, err := s.loadRules()
	if err != nil {
		return err
	}

	kept := rules[:0]
	for _, rule := range rules {
		if rule.ID != id {
			kept = append(kept, rule)
		}
	}
	if len(kept) == len(rules) {
		return ErrNotFound
	}
	return s.write(rulesFile, kept)
}

// Alerts returns all stored alerts, newest first.
func (s *Store) Alerts() ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAlerts()
}

// CreateAlert assigns an ID and timestamp and prepends the alert.
func (s *Store) CreateAlert(alert model.Alert) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.loadAlerts()
	if err != nil {
		return model.Alert{}, err
	}

	alert.ID = uuid.NewString()
	alert.CreatedAt = s.now()
	if alert.Severity == "" {
		alert.Severity = "low"
	}
	alerts = append([]model.Alert{alert}, alerts...)

	if err := s.write(alertsFile, alerts); err != nil {
		return model.Alert{}, err
	}
	return alert, nil
}

// PrependAlerts inserts already-built alerts (from an automation run) ahead
// of the existing ones and returns how many were added.
func (s *Store) PrependAlerts(alerts []model.Alert) (int, error) {
	if len(alerts) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadAlerts()
	if err != nil {
		return 0, err
	}
	merged := append(append([]model.Alert{}, alerts...), existing...)
	if err := s.write(alertsFile, merged); err != nil {
		return 0, err
	}
	return len(alerts), nil
}

// AcknowledgeAlert marks the alert with the given ID as acknowledged.
func (s *Store) AcknowledgeAlert(id string) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.loadAlerts()
	if err != nil {
		return model.Alert{}, err
	}

	for i := range alerts {
		if alerts[i].ID != id {
			continue
		}
		alerts[i].Acknowledged = true
		if err := s.write(alertsFile, alerts); err != nil {
			return model.Alert{}, err
		}
		return alerts[i], nil
	}
	return model.Alert{}, ErrNotFound
}

// DeleteAlert removes the alert with the given ID.
func (s *Store) DeleteAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.loadAlerts()
	if err != nil {
		return err
	}

	kept := alerts[:0]
	for _, alert := range alerts {
		if alert.ID != id {
			kept = append(kept, alert)
		}
	}
	if len(kept) == len(alerts) {
		return ErrNotFound
	}
	return s.write(alertsFile, kept)
}

// Knowledge returns the full repo-to-annotation map.
func (s *Store) Knowledge() (map[string]model.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadKnowledge()
}

// SetKnowledge upserts the annotation for one repository.
func (s *Store) SetKnowledge(repo string, entry model.Knowledge) (model.Knowledge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadKnowledge()
	if err != nil {
		return model.Knowledge{}, err
	}

	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	entry.UpdatedAt = s.now()
	entries[repo] = entry

	if err := s.write(knowledgeFile, entries); err != nil {
		return model.Knowledge{}, err
	}
	return entry, nil
}

// DeleteKnowledge removes the annotation for one repository.
func (s *Store) DeleteKnowledge(repo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadKnowledge()
	if err != nil {
		return err
	}
	if _, ok := entries[repo]; !ok {
		return ErrNotFound
	}
	delete(entries, repo)
	return s.write(knowledgeFile, entries)
}

func (s *Store) loadRules() ([]model.Rule, error) {
	var rules []model.Rule
	if _, err := s.read(rulesFile, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) loadAlerts() ([]model.Alert, error) {
	var alerts []model.Alert
	if _, err := s.read(alertsFile, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *Store) loadKnowledge() (map[string]model.Knowledge, error) {
	entries := map[string]model.Knowledge{}
	if _, err := s.read(knowledgeFile, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// read unmarshals a document file into v. A missing file is not an error;
// it reports ok=false and leaves v untouched.
func (s *Store) read(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}
	return true, nil
}

// write marshals v and atomically replaces the document file.
func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
