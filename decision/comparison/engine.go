package comparison

import (
	"sort"
)

// lookup maps dial codes to records. Later records overwrite earlier ones for
// the same code; order keeps the position where each code was first seen.
type lookup struct {
	order   []string
	records map[string]StandardizedRecord
}

func buildLookup(records []StandardizedRecord) lookup {
	l := lookup{
		order:   make([]string, 0, len(records)),
		records: make(map[string]StandardizedRecord, len(records)),
	}
	for _, r := range records {
		if _, seen := l.records[r.DialCode]; !seen {
			l.order = append(l.order, r.DialCode)
		}
		l.records[r.DialCode] = r
	}
	return l
}

func (l lookup) has(code string) bool {
	_, ok := l.records[code]
	return ok
}

// GenerateReports compares two decks and returns the pricing and code reports.
// It is a pure function over its input; callers that need to keep a request or
// UI path responsive should run it through worker.Runner.
func GenerateReports(input Input) (*Reports, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	lookup1 := buildLookup(input.File1Data)
	lookup2 := buildLookup(input.File2Data)

	pricing := comparePricing(lookup1, lookup2)
	pricing.FileName1 = input.FileName1
	pricing.FileName2 = input.FileName2

	return &Reports{
		PricingReport: pricing,
		CodeReport:    buildCodeReport(input, lookup1, lookup2),
	}, nil
}

func comparePricing(lookup1, lookup2 lookup) PricingReport {
	var (
		higher1     []ComparisonEntry
		higher2     []ComparisonEntry
		same        []ComparisonEntry
		nonMatching []NonMatchingEntry
	)

	for _, code := range lookup1.order {
		rec1 := lookup1.records[code]
		rec2, ok := lookup2.records[code]
		if !ok {
			nonMatching = append(nonMatching, NonMatchingEntry{
				DialCode: code,
				DestName: rec1.DestName,
				Rate:     rec1.Rate,
				File:     File1,
			})
			continue
		}

		entry := ComparisonEntry{
			DialCode:  code,
			DestName:  rec1.DestName,
			RateFile1: rec1.Rate,
			RateFile2: rec2.Rate,
		}
		switch {
		case rec1.Rate > rec2.Rate:
			entry.PercentageDifference = CalculateMarkup(rec1.Rate, rec2.Rate)
			higher1 = append(higher1, entry)
		case rec2.Rate > rec1.Rate:
			entry.PercentageDifference = CalculateMarkup(rec2.Rate, rec1.Rate)
			higher2 = append(higher2, entry)
		default:
			same = append(same, entry)
		}
	}

	for _, code := range lookup2.order {
		if lookup1.has(code) {
			continue
		}
		rec2 := lookup2.records[code]
		nonMatching = append(nonMatching, NonMatchingEntry{
			DialCode: code,
			DestName: rec2.DestName,
			Rate:     rec2.Rate,
			File:     File2,
		})
	}

	sortByDifference(higher1)
	sortByDifference(higher2)

	return PricingReport{
		HigherRatesForFile1: ConsolidateEntries(higher1),
		HigherRatesForFile2: ConsolidateEntries(higher2),
		SameRates:           ConsolidateEntries(same),
		NonMatchingCodes:    ConsolidateNonMatchingEntries(nonMatching),
	}
}

// sortByDifference orders entries largest disparity first, keeping encounter
// order for ties.
func sortByDifference(entries []ComparisonEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PercentageDifference > entries[j].PercentageDifference
	})
}
