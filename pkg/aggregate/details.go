package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/renewpackages/renewapi/pkg/storage"
)

// DetailRow is one distinct detail text under a B1/B2/B3 path. Percentage is
// always the natural share; a configured value is reported alongside it and
// never replaces it.
type DetailRow struct {
	Detail               string   `json:"detail"`
	Count                int      `json:"count"`
	TotalCount           int      `json:"totalCount"`
	Percentage           float64  `json:"percentage"`
	ConfiguredPercentage *float64 `json:"configuredPercentage,omitempty"`
}

// DetailsUnder selects the detail texts under b1/b2/b3.
func DetailsUnder(b1, b2, b3 string) storage.PathFilter {
	return storage.PathFilter{Level: storage.LevelDetail, B1: b1, B2: b2, B3: b3}
}

// GroupedDetails groups the trimmed, non-empty details under b1/b2/b3 and
// sorts them by count descending. Results are always read from the store.
func (e *Engine) GroupedDetails(ctx context.Context, b1, b2, b3 string) ([]DetailRow, error) {
	p := DetailsUnder(b1, b2, b3)
	if !p.Complete() {
		return []DetailRow{}, nil
	}

	entries, err := e.entries.FindEntries(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load details under %v: %w", p.Components(), err)
	}

	rows := []DetailRow{}
	index := make(map[string]int)
	total := 0
	for _, en := range entries {
		d := storage.NormalizeDetail(en.Detail)
		if d == "" {
			continue
		}
		total++
		if i, ok := index[d]; ok {
			rows[i].Count++
			continue
		}
		index[d] = len(rows)
		rows = append(rows, DetailRow{Detail: d, Count: 1})
	}
	if len(rows) == 0 {
		return rows, nil
	}

	overrides, err := e.overrides.FindOverrides(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("load detail overrides under %v: %w", p.Components(), err)
	}
	for _, o := range overrides {
		if i, ok := index[o.Value]; ok {
			pct := o.Percentage
			rows[i].ConfiguredPercentage = &pct
		}
	}

	for i := range rows {
		rows[i].TotalCount = total
		rows[i].Percentage = math.Round(float64(rows[i].Count)/float64(total)*100*100) / 100
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })

	e.log.Debugf("Grouped %d details into %d rows under %v", total, len(rows), p.Components())
	return rows, nil
}

// SetDetailOverride records a configured percentage for one detail text.
// The key is the trimmed text.
func (e *Engine) SetDetailOverride(ctx context.Context, b1, b2, b3, detail string, percentage float64) error {
	p := DetailsUnder(b1, b2, b3)
	if !p.Complete() {
		return fmt.Errorf("%w: detail override needs B1, B2 and B3", ErrValidation)
	}
	detail = storage.NormalizeDetail(detail)
	if detail == "" {
		return fmt.Errorf("%w: detail is required", ErrValidation)
	}
	if math.IsNaN(percentage) || math.IsInf(percentage, 0) {
		return fmt.Errorf("%w: percentage must be a finite number", ErrValidation)
	}

	if _, err := e.overrides.UpsertOverride(ctx, p, detail, percentage); err != nil {
		return fmt.Errorf("save detail override: %w", err)
	}
	e.log.Infof("Saved detail percentage %v for %q under %v", percentage, detail, p.Components())
	return nil
}
