// Package importer decodes spreadsheet exports into entries for a bulk
// replace.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/renewpackages/renewapi/pkg/storage"
)

// DetailHeader is the spreadsheet column holding the free-text detail.
const DetailHeader = "B3的詳細資料"

var ErrNoRows = errors.New("no rows to import")

// Result holds the decoded entries. Rows missing B1, B2 or B3 are dropped
// and counted in Skipped.
type Result struct {
	Entries []storage.Entry
	Skipped int
}

func (r *Result) add(b1, b2, b3, detail string) {
	e := storage.Entry{
		B1:     storage.NormalizeLabel(b1),
		B2:     storage.NormalizeLabel(b2),
		B3:     storage.NormalizeLabel(b3),
		Detail: detail,
	}
	if e.B1 == "" || e.B2 == "" || e.B3 == "" {
		r.Skipped++
		return
	}
	r.Entries = append(r.Entries, e)
}

func columnFor(header string) string {
	h := strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	switch {
	case strings.EqualFold(h, "B1"):
		return "B1"
	case strings.EqualFold(h, "B2"):
		return "B2"
	case strings.EqualFold(h, "B3"):
		return "B3"
	case h == DetailHeader, strings.EqualFold(h, "detail"):
		return "detail"
	}
	return ""
}

// headerIndex maps the known columns to their position in header. The first
// occurrence of a column wins.
func headerIndex(header []string) (map[string]int, error) {
	idx := map[string]int{}
	for i, h := range header {
		if col := columnFor(h); col != "" {
			if _, dup := idx[col]; !dup {
				idx[col] = i
			}
		}
	}
	for _, col := range []string{"B1", "B2", "B3"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("header is missing column %s", col)
		}
	}
	return idx, nil
}

func (r *Result) addRecord(idx map[string]int, rec []string) {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	r.add(cell("B1"), cell("B2"), cell("B3"), cell("detail"))
}

// DecodeCSV reads a CSV export whose first line names the columns B1, B2,
// B3 and optionally B3的詳細資料 (or detail). Other columns are ignored.
func DecodeCSV(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, ErrNoRows
	}
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return Result{}, fmt.Errorf("csv %w", err)
	}

	var res Result
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv: %w", err)
		}
		res.addRecord(idx, rec)
	}
	if len(res.Entries) == 0 {
		return res, ErrNoRows
	}
	return res, nil
}

// DecodeJSON reads an array of row objects. Cells may be strings or numbers;
// the detail is taken from "detail" or "B3的詳細資料".
func DecodeJSON(data []byte) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return Result{}, errors.New("expected a JSON array of rows")
	}

	var res Result
	var bad error
	i := 0
	root.ForEach(func(_, row gjson.Result) bool {
		if !row.IsObject() {
			bad = fmt.Errorf("row %d is not an object", i)
			return false
		}
		i++
		detail := row.Get("detail")
		if !detail.Exists() {
			detail = row.Get(DetailHeader)
		}
		res.add(row.Get("B1").String(), row.Get("B2").String(), row.Get("B3").String(), detail.String())
		return true
	})
	if bad != nil {
		return Result{}, bad
	}
	if len(res.Entries) == 0 {
		return res, ErrNoRows
	}
	return res, nil
}
