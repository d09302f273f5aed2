package comparison

import "strings"

// DialCodeSeparator joins the dial codes of a consolidated row.
const DialCodeSeparator = ", "

type entryKey struct {
	destName  string
	rateFile1 float64
	rateFile2 float64
}

type nonMatchingKey struct {
	destName string
	rate     float64
	file     FileTag
}

// ConsolidateEntries merges entries sharing destination and both rates into a
// single row listing all their dial codes. Groups keep first-seen order.
func ConsolidateEntries(entries []ComparisonEntry) []ComparisonEntry {
	out := make([]ComparisonEntry, 0, len(entries))
	codes := make([][]string, 0, len(entries))
	index := make(map[entryKey]int, len(entries))

	for _, e := range entries {
		k := entryKey{destName: e.DestName, rateFile1: e.RateFile1, rateFile2: e.RateFile2}
		if i, ok := index[k]; ok {
			codes[i] = append(codes[i], e.DialCode)
			continue
		}
		index[k] = len(out)
		out = append(out, e)
		codes = append(codes, []string{e.DialCode})
	}

	for i := range out {
		out[i].DialCode = strings.Join(codes[i], DialCodeSeparator)
	}
	return out
}

// ConsolidateNonMatchingEntries merges non-matching entries sharing
// destination, rate and source file.
func ConsolidateNonMatchingEntries(entries []NonMatchingEntry) []NonMatchingEntry {
	out := make([]NonMatchingEntry, 0, len(entries))
	codes := make([][]string, 0, len(entries))
	index := make(map[nonMatchingKey]int, len(entries))

	for _, e := range entries {
		k := nonMatchingKey{destName: e.DestName, rate: e.Rate, file: e.File}
		if i, ok := index[k]; ok {
			codes[i] = append(codes[i], e.DialCode)
			continue
		}
		index[k] = len(out)
		out = append(out, e)
		codes = append(codes, []string{e.DialCode})
	}

	for i := range out {
		out[i].DialCode = strings.Join(codes[i], DialCodeSeparator)
	}
	return out
}

// SplitDialCodes expands a consolidated dial code field back into codes.
func SplitDialCodes(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, DialCodeSeparator)
}
