package ratesheet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ratedeck/decision/comparison"
	rderrors "ratedeck/pkg/errors"
)

// US column names
const (
	ColNPANXX    = "npanxx"
	ColState     = "state"
	ColInterRate = "interRate"
	ColIntraRate = "intraRate"
	ColIJRate    = "ijRate"
)

var usHeaderAliases = map[string]string{
	"npanxx":        ColNPANXX,
	"prefix":        ColNPANXX,
	"state":         ColState,
	"interrate":     ColInterRate,
	"interstate":    ColInterRate,
	"intrarate":     ColIntraRate,
	"intrastate":    ColIntraRate,
	"ijrate":        ColIJRate,
	"indeterminate": ColIJRate,
}

// ReadUS parses a US NPANXX rate deck
func ReadUS(r io.Reader, source string) ([]comparison.USRecord, error) {
	sr := newSheetReader(r, source)
	if err := sr.readHeader(usHeaderAliases, ColNPANXX, ColInterRate, ColIntraRate, ColIJRate); err != nil {
		return nil, err
	}

	records := []comparison.USRecord{}
	for {
		row, err := sr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		npanxx := sr.field(row, ColNPANXX)
		if len(npanxx) != 6 {
			return nil, rderrors.NewParseError(sr.source, sr.rowNum, fmt.Sprintf("npanxx must be 6 digits: %q", npanxx))
		}

		rec := comparison.USRecord{NPANXX: npanxx, State: sr.field(row, ColState)}
		if rec.InterRate, err = sr.rate(row, ColInterRate); err != nil {
			return nil, err
		}
		if rec.IntraRate, err = sr.rate(row, ColIntraRate); err != nil {
			return nil, err
		}
		if rec.IJRate, err = sr.rate(row, ColIJRate); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadUSFile reads a US rate deck from disk
func LoadUSFile(path string) ([]comparison.USRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadUS(f, filepath.Base(path))
}
