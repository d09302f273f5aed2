package ratesheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ratedeck/decision/comparison"
)

// Write emits a standardized rate deck with a canonical header
func Write(w io.Writer, records []comparison.StandardizedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColDialCode, ColDestName, ColRate}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.DialCode, r.DestName, strconv.FormatFloat(r.Rate, 'f', -1, 64)}); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.DialCode, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
