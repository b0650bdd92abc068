package aggregate

import (
	"context"
	"errors"
	"sync"

	"github.com/renewpackages/renewapi/pkg/storage"
)

var (
	_ EntryStore    = (*storage.DB)(nil)
	_ OverrideStore = (*storage.DB)(nil)
	_ EntryStore    = (*memStore)(nil)
	_ OverrideStore = (*memStore)(nil)
)

// memStore is an in-memory EntryStore and OverrideStore that counts queries.
type memStore struct {
	mu        sync.Mutex
	entries   []storage.Entry
	overrides []storage.Override

	groupCalls int
	findCalls  int
	failWith   error
}

func matches(p storage.PathFilter, e storage.Entry) bool {
	comps := p.Components()
	fields := []string{e.B1, e.B2, e.B3}
	for i, c := range comps {
		if fields[i] != c {
			return false
		}
	}
	return true
}

func field(level storage.Level, e storage.Entry) string {
	switch level {
	case storage.LevelB1:
		return e.B1
	case storage.LevelB2:
		return e.B2
	case storage.LevelB3:
		return e.B3
	}
	return e.Detail
}

func (m *memStore) FindEntries(ctx context.Context, p storage.PathFilter) ([]storage.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []storage.Entry
	for _, e := range m.entries {
		if matches(p, e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) GroupCount(ctx context.Context, p storage.PathFilter) ([]storage.ValueCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	index := map[string]int{}
	var out []storage.ValueCount
	for _, e := range m.entries {
		if !matches(p, e) {
			continue
		}
		v := field(p.Level, e)
		if i, ok := index[v]; ok {
			out[i].Count++
			continue
		}
		index[v] = len(out)
		out = append(out, storage.ValueCount{Value: v, Count: 1})
	}
	return out, nil
}

func (m *memStore) DistinctValues(ctx context.Context, level storage.Level) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, e := range m.entries {
		v := field(level, e)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) ReplaceEntries(ctx context.Context, entries []storage.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]storage.Entry{}, entries...)
	return nil
}

func (m *memStore) DeleteEntries(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

func overrideMatches(p storage.PathFilter, o storage.Override) bool {
	if o.Scope != p.Scope() {
		return false
	}
	switch p.Level {
	case storage.LevelB2:
		return o.B1 == p.B1
	case storage.LevelB3:
		return o.B1 == p.B1 && o.B2 == p.B2
	case storage.LevelDetail:
		return o.B1 == p.B1 && o.B2 == p.B2 && o.B3 == p.B3
	}
	return false
}

func (m *memStore) FindOverrides(ctx context.Context, p storage.PathFilter) ([]storage.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Override
	for _, o := range m.overrides {
		if overrideMatches(p, o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpsertOverride(ctx context.Context, p storage.PathFilter, value string, percentage float64) (storage.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if percentage < 0 || percentage > 100 {
		return storage.Override{}, storage.ErrConstraint
	}
	for i, o := range m.overrides {
		if overrideMatches(p, o) && o.Value == value {
			m.overrides[i].Percentage = percentage
			return m.overrides[i], nil
		}
	}
	o := storage.Override{Scope: p.Scope(), Value: value, Percentage: percentage}
	comps := p.Components()
	dst := []*string{&o.B1, &o.B2, &o.B3}
	for i, c := range comps {
		*dst[i] = c
	}
	m.overrides = append(m.overrides, o)
	return o, nil
}

func (m *memStore) DeleteOverrides(ctx context.Context, scopes ...storage.Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(scopes) == 0 {
		m.overrides = nil
		return nil
	}
	return errors.New("scoped delete not used by the engine")
}

func (m *memStore) ResetOverrides(ctx context.Context) error {
	return m.DeleteOverrides(ctx)
}

func (m *memStore) calls() (group, find int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupCalls, m.findCalls
}
