package comparison

import "github.com/shopspring/decimal"

func buildCodeReport(input Input, lookup1, lookup2 lookup) CodeReport {
	matched := 0
	for _, code := range lookup1.order {
		if lookup2.has(code) {
			matched++
		}
	}
	union := len(lookup1.order) + len(lookup2.order) - matched

	return CodeReport{
		File1:                     fileStats(input.FileName1, input.File1Data),
		File2:                     fileStats(input.FileName2, input.File2Data),
		MatchedCodes:              matched,
		NonMatchedCodes:           union - matched,
		MatchedCodesPercentage:    percentOf(matched, union),
		NonMatchedCodesPercentage: percentOf(union-matched, union),
	}
}

func fileStats(name string, records []StandardizedRecord) FileStats {
	destinations := make(map[string]struct{}, len(records))
	for _, r := range records {
		destinations[r.DestName] = struct{}{}
	}
	return FileStats{
		FileName:                     name,
		TotalCodes:                   len(records),
		TotalDestinations:            len(destinations),
		UniqueDestinationsPercentage: percentOf(len(destinations), len(records)),
	}
}

// percentOf returns part/whole as a percentage rounded half away from zero to
// two places, or 0 for an empty whole.
func percentOf(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole)))
	return pct.Round(2).InexactFloat64()
}
