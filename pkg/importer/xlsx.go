package importer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// zipMagic opens every .xlsx workbook.
var zipMagic = []byte("PK\x03\x04")

// DecodeXLSX reads the first sheet of an Excel workbook. The first row names
// the columns the same way DecodeCSV expects; blank rows are ignored.
func DecodeXLSX(r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, errors.New("xlsx workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Result{}, ErrNoRows
	}
	idx, err := headerIndex(rows[0])
	if err != nil {
		return Result{}, fmt.Errorf("sheet %q %w", sheets[0], err)
	}

	var res Result
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		res.addRecord(idx, row)
	}
	if len(res.Entries) == 0 {
		return res, ErrNoRows
	}
	return res, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// DecodeUpload decodes an uploaded spreadsheet. Workbooks are recognised by
// an .xlsx name or by the zip signature; anything else is read as CSV.
func DecodeUpload(name string, r io.Reader) (Result, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zipMagic))
	if strings.EqualFold(filepath.Ext(name), ".xlsx") || bytes.Equal(head, zipMagic) {
		return DecodeXLSX(br)
	}
	return DecodeCSV(br)
}
