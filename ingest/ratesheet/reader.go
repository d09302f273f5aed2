// Package ratesheet reads and writes standardized rate deck CSV files
package ratesheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ratedeck/decision/comparison"
	rderrors "ratedeck/pkg/errors"
)

// Canonical column names
const (
	ColDialCode = "dialCode"
	ColDestName = "destName"
	ColRate     = "rate"
)

// headerAliases maps normalized header text to a canonical column
var headerAliases = map[string]string{
	"dialcode":    ColDialCode,
	"code":        ColDialCode,
	"prefix":      ColDialCode,
	"destname":    ColDestName,
	"destination": ColDestName,
	"name":        ColDestName,
	"description": ColDestName,
	"rate":        ColRate,
	"price":       ColRate,
}

// normalizeHeader lowercases a header and drops separators
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
	h = strings.ToLower(h)
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(h)
}

// sheetReader wraps a csv.Reader with row tracking and a column index.
// Row numbers are 1-based physical lines of the file.
type sheetReader struct {
	source string
	reader *csv.Reader
	rowNum int64
	colIdx map[string]int
}

func newSheetReader(r io.Reader, source string) *sheetReader {
	buf := bufio.NewReaderSize(r, 64*1024)

	// Skip UTF-8 BOM if present
	if bom, err := buf.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		buf.Discard(3)
	}

	reader := csv.NewReader(buf)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	return &sheetReader{source: source, reader: reader, colIdx: make(map[string]int)}
}

// readHeader reads the header row and resolves the required columns
func (sr *sheetReader) readHeader(aliases map[string]string, required ...string) error {
	row, err := sr.next()
	if errors.Is(err, io.EOF) {
		return rderrors.NewParseError(sr.source, 1, "rate sheet is empty")
	}
	if err != nil {
		return err
	}

	for i, h := range row {
		if col, ok := aliases[normalizeHeader(h)]; ok {
			if _, seen := sr.colIdx[col]; !seen {
				sr.colIdx[col] = i
			}
		}
	}

	for _, col := range required {
		if _, ok := sr.colIdx[col]; !ok {
			return rderrors.NewParseError(sr.source, sr.rowNum, fmt.Sprintf("missing %s column", col))
		}
	}
	return nil
}

// next returns the next non-blank row
func (sr *sheetReader) next() ([]string, error) {
	for {
		row, err := sr.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, rderrors.NewParseError(sr.source, int64(perr.Line), perr.Err.Error())
			}
			return nil, rderrors.NewParseError(sr.source, sr.rowNum+1, err.Error())
		}
		line, _ := sr.reader.FieldPos(0)
		sr.rowNum = int64(line)

		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		return row, nil
	}
}

func (sr *sheetReader) field(row []string, col string) string {
	idx, ok := sr.colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// thousandsRate matches rates grouped with comma thousands separators, such
// as 1,000.5. Any other comma, including a decimal comma, is invalid.
var thousandsRate = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d*)?$`)

// rate parses a rate field. Rates must be finite and non-negative.
func (sr *sheetReader) rate(row []string, col string) (float64, error) {
	raw := sr.field(row, col)
	num := raw
	if strings.Contains(num, ",") {
		if !thousandsRate.MatchString(num) {
			return 0, rderrors.NewInvalidRateError(sr.source, sr.rowNum, raw)
		}
		num = strings.ReplaceAll(num, ",", "")
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, rderrors.NewInvalidRateError(sr.source, sr.rowNum, raw)
	}
	return v, nil
}

// Read parses a standardized rate deck. A sheet with only a header yields
// an empty, non-nil deck.
func Read(r io.Reader, source string) ([]comparison.StandardizedRecord, error) {
	sr := newSheetReader(r, source)
	if err := sr.readHeader(headerAliases, ColDialCode, ColDestName, ColRate); err != nil {
		return nil, err
	}

	records := []comparison.StandardizedRecord{}
	for {
		row, err := sr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		code := sr.field(row, ColDialCode)
		if code == "" {
			return nil, rderrors.NewParseError(sr.source, sr.rowNum, "dial code is empty")
		}
		rate, err := sr.rate(row, ColRate)
		if err != nil {
			return nil, err
		}

		records = append(records, comparison.StandardizedRecord{
			DialCode: code,
			DestName: sr.field(row, ColDestName),
			Rate:     rate,
		})
	}
	return records, nil
}

// LoadFile reads a standardized rate deck from disk
func LoadFile(path string) ([]comparison.StandardizedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path))
}
