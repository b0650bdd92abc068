package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/renewpackages/renewapi/pkg/cache"
	"github.com/renewpackages/renewapi/pkg/storage"
)

// Row is one child value of a B2 or B3 distribution. Percentage is the
// configured override when one exists, otherwise the natural percentage
// rounded to an integer.
type Row struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	TotalCount int     `json:"totalCount"`
	Percentage float64 `json:"percentage"`
}

// B2Under selects the B2 values under b1.
func B2Under(b1 string) storage.PathFilter {
	return storage.PathFilter{Level: storage.LevelB2, B1: b1}
}

// B3Under selects the B3 values under b1/b2.
func B3Under(b1, b2 string) storage.PathFilter {
	return storage.PathFilter{Level: storage.LevelB3, B1: b1, B2: b2}
}

func categoryFor(level storage.Level) string {
	switch level {
	case storage.LevelB2:
		return categoryB2Data
	case storage.LevelB3:
		return categoryB3Data
	}
	return ""
}

func distributionKey(p storage.PathFilter) string {
	return cache.Key(categoryFor(p.Level), p.Components()...)
}

// ChildDistribution returns the distribution of p.Level values under p's
// parent path, sorted by percentage descending. An incomplete path or a path
// without entries yields an empty result.
func (e *Engine) ChildDistribution(ctx context.Context, p storage.PathFilter) ([]Row, error) {
	if p.Level != storage.LevelB2 && p.Level != storage.LevelB3 {
		return nil, fmt.Errorf("%w: no distribution for level %s", ErrValidation, p.Level)
	}
	if !p.Complete() {
		return []Row{}, nil
	}

	rows, err := cache.GetOrLoad(ctx, e.cache, distributionKey(p), e.aggregateTTL, func(ctx context.Context) ([]Row, error) {
		return e.computeDistribution(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return append([]Row{}, rows...), nil
}

func (e *Engine) computeDistribution(ctx context.Context, p storage.PathFilter) ([]Row, error) {
	groups, err := e.entries.GroupCount(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("group %s values under %v: %w", p.Level, p.Components(), err)
	}
	if len(groups) == 0 {
		e.log.Debugf("No %s values under %v", p.Level, p.Components())
		return []Row{}, nil
	}

	overrides, err := e.overrides.FindOverrides(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load %s overrides under %v: %w", p.Level, p.Components(), err)
	}
	configured := make(map[string]float64, len(overrides))
	for _, o := range overrides {
		configured[o.Value] = o.Percentage
	}

	total := 0
	for _, g := range groups {
		total += g.Count
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		pct, ok := configured[g.Value]
		if !ok {
			pct = naturalPercentage(g.Count, total)
		}
		rows = append(rows, Row{Value: g.Value, Count: g.Count, TotalCount: total, Percentage: pct})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Percentage > rows[j].Percentage })

	e.log.Debugf("Computed %d %s values (%d entries, %d overrides) under %v", len(rows), p.Level, total, len(overrides), p.Components())
	return rows, nil
}

// naturalPercentage rounds half away from zero to an integer.
func naturalPercentage(count, total int) float64 {
	return math.Round(float64(count) / float64(total) * 100)
}

// SetChildOverride pins the percentage shown for value under p and drops the
// cached distribution of that path only.
func (e *Engine) SetChildOverride(ctx context.Context, p storage.PathFilter, value string, percentage float64) error {
	if p.Level != storage.LevelB2 && p.Level != storage.LevelB3 {
		return fmt.Errorf("%w: no overrides for level %s", ErrValidation, p.Level)
	}
	if !p.Complete() {
		return fmt.Errorf("%w: %s override needs %d path components", ErrValidation, p.Level, len(p.Components()))
	}
	if value == "" {
		return fmt.Errorf("%w: override value is required", ErrValidation)
	}
	if math.IsNaN(percentage) || math.IsInf(percentage, 0) {
		return fmt.Errorf("%w: percentage must be a finite number", ErrValidation)
	}

	if _, err := e.overrides.UpsertOverride(ctx, p, value, percentage); err != nil {
		return fmt.Errorf("save %s override: %w", p.Level, err)
	}
	n := e.cache.InvalidatePath(distributionKey(p))
	e.log.Infof("Saved %s percentage %v for %q under %v (%d cache entries dropped)", p.Level, percentage, value, p.Components(), n)
	return nil
}

// ClearAllOverrides deletes every override and drops the cached B2/B3
// distributions. Details are never cached, so nothing else is touched.
func (e *Engine) ClearAllOverrides(ctx context.Context) error {
	if err := e.overrides.DeleteOverrides(ctx); err != nil {
		return fmt.Errorf("clear overrides: %w", err)
	}
	e.invalidateDistributions()
	e.log.Infof("Cleared all percentage configurations")
	return nil
}

// MigrateOverrides rebuilds the override table from scratch.
func (e *Engine) MigrateOverrides(ctx context.Context) error {
	if err := e.overrides.ResetOverrides(ctx); err != nil {
		return fmt.Errorf("migrate overrides: %w", err)
	}
	e.invalidateDistributions()
	e.log.Infof("Percentage configuration table rebuilt")
	return nil
}

func (e *Engine) invalidateDistributions() {
	e.cache.InvalidatePath(cache.Key(categoryB2Data))
	e.cache.InvalidatePath(cache.Key(categoryB3Data))
}
