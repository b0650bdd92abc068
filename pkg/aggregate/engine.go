// Package aggregate computes value distributions over the B1/B2/B3 hierarchy
// and blends them with operator-configured percentages.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/renewpackages/renewapi/pkg/cache"
	"github.com/renewpackages/renewapi/pkg/storage"
)

// ErrValidation is returned for missing path components, an empty override
// value or a non-finite percentage.
var ErrValidation = errors.New("validation failed")

const (
	DefaultAggregateTTL = 2 * time.Minute
	DefaultListingTTL   = 5 * time.Minute
)

// Cache key categories.
const (
	categoryB1Values = "b1Values"
	categoryB2Data   = "b2Data"
	categoryB3Data   = "b3Data"
)

// EntryStore is the durable store of imported rows.
type EntryStore interface {
	FindEntries(ctx context.Context, p storage.PathFilter) ([]storage.Entry, error)
	GroupCount(ctx context.Context, p storage.PathFilter) ([]storage.ValueCount, error)
	DistinctValues(ctx context.Context, level storage.Level) ([]string, error)
	ReplaceEntries(ctx context.Context, entries []storage.Entry) error
	DeleteEntries(ctx context.Context) error
}

// OverrideStore is the durable store of configured percentages.
type OverrideStore interface {
	FindOverrides(ctx context.Context, p storage.PathFilter) ([]storage.Override, error)
	UpsertOverride(ctx context.Context, p storage.PathFilter, value string, percentage float64) (storage.Override, error)
	DeleteOverrides(ctx context.Context, scopes ...storage.Scope) error
	ResetOverrides(ctx context.Context) error
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Engine serves distributions, grouped details and override writes.
type Engine struct {
	entries      EntryStore
	overrides    OverrideStore
	cache        *cache.Cache
	log          Logger
	aggregateTTL time.Duration
	listingTTL   time.Duration
}

type Option func(*Engine)

func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithAggregateTTL sets how long B2/B3 distributions stay cached.
func WithAggregateTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.aggregateTTL = d
		}
	}
}

// WithListingTTL sets how long the B1 value listing stays cached.
func WithListingTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.listingTTL = d
		}
	}
}

// New builds an Engine. The cache is owned by the caller and may be shared
// with other components using different key categories.
func New(entries EntryStore, overrides OverrideStore, c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		entries:      entries,
		overrides:    overrides,
		cache:        c,
		log:          nopLogger{},
		aggregateTTL: DefaultAggregateTTL,
		listingTTL:   DefaultListingTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TopLevelValues lists every distinct B1 value, numeric prefixes first.
func (e *Engine) TopLevelValues(ctx context.Context) ([]string, error) {
	values, err := cache.GetOrLoad(ctx, e.cache, cache.Key(categoryB1Values), e.listingTTL, func(ctx context.Context) ([]string, error) {
		values, err := e.entries.DistinctValues(ctx, storage.LevelB1)
		if err != nil {
			return nil, fmt.Errorf("list B1 values: %w", err)
		}
		sortNatural(values)
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string{}, values...), nil
}

// ReplaceAllEntries wipes every override and entry, stores entries and
// clears the cache. Labels are trimmed; a row with an empty label rejects
// the whole batch before anything is deleted.
//
// The override wipe and the entry replace are separate store operations; a
// failure between them leaves overrides cleared and the old entries intact.
func (e *Engine) ReplaceAllEntries(ctx context.Context, entries []storage.Entry) error {
	clean := make([]storage.Entry, 0, len(entries))
	for i, en := range entries {
		en.B1 = storage.NormalizeLabel(en.B1)
		en.B2 = storage.NormalizeLabel(en.B2)
		en.B3 = storage.NormalizeLabel(en.B3)
		if en.B1 == "" || en.B2 == "" || en.B3 == "" {
			return fmt.Errorf("%w: row %d has an empty B1, B2 or B3", ErrValidation, i)
		}
		clean = append(clean, en)
	}

	if err := e.overrides.DeleteOverrides(ctx); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}
	if err := e.entries.ReplaceEntries(ctx, clean); err != nil {
		e.cache.Clear()
		return fmt.Errorf("replace entries: %w", err)
	}
	e.cache.Clear()
	e.log.Infof("Replaced data with %d entries", len(clean))
	return nil
}

// ClearData deletes every entry and override.
func (e *Engine) ClearData(ctx context.Context) error {
	defer e.cache.Clear()
	if err := e.entries.DeleteEntries(ctx); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if err := e.overrides.DeleteOverrides(ctx); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}
	e.log.Infof("Cleared all entries and overrides")
	return nil
}
