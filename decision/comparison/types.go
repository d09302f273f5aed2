// Package comparison provides the Rate Deck Comparison Engine
// Joins two standardized rate decks by dial code and produces pricing and code coverage reports
package comparison

import (
	rderrors "ratedeck/pkg/errors"
)

// FileTag identifies which input deck a non-matching code came from
type FileTag string

const (
	File1 FileTag = "file1"
	File2 FileTag = "file2"
)

// StandardizedRecord is one dial code row of a rate deck
type StandardizedRecord struct {
	DialCode string  `json:"dialCode"`
	DestName string  `json:"destName"`
	Rate     float64 `json:"rate"`
}

// Input holds the two named decks to compare.
// A nil data slice counts as missing; an empty one is a valid, empty deck.
type Input struct {
	FileName1 string               `json:"fileName1"`
	FileName2 string               `json:"fileName2"`
	File1Data []StandardizedRecord `json:"file1Data"`
	File2Data []StandardizedRecord `json:"file2Data"`
}

// Validate checks that both names and both datasets are present
func (in Input) Validate() error {
	if in.FileName1 == "" || in.FileName2 == "" || in.File1Data == nil || in.File2Data == nil {
		return rderrors.NewInvalidInputError()
	}
	return nil
}

// ComparisonEntry is a dial code (or consolidated group of codes) priced in both decks
type ComparisonEntry struct {
	DialCode             string  `json:"dialCode"`
	DestName             string  `json:"destName"`
	RateFile1            float64 `json:"rateFile1"`
	RateFile2            float64 `json:"rateFile2"`
	PercentageDifference float64 `json:"percentageDifference"`
}

// NonMatchingEntry is a dial code (or group of codes) priced in only one deck
type NonMatchingEntry struct {
	DialCode string  `json:"dialCode"`
	DestName string  `json:"destName"`
	Rate     float64 `json:"rate"`
	File     FileTag `json:"file"`
}

// PricingReport partitions every dial code of both decks into four buckets
type PricingReport struct {
	HigherRatesForFile1 []ComparisonEntry  `json:"higherRatesForFile1"`
	HigherRatesForFile2 []ComparisonEntry  `json:"higherRatesForFile2"`
	SameRates           []ComparisonEntry  `json:"sameRates"`
	NonMatchingCodes    []NonMatchingEntry `json:"nonMatchingCodes"`
	FileName1           string             `json:"fileName1"`
	FileName2           string             `json:"fileName2"`
}

// FileStats aggregates one deck for the code report
type FileStats struct {
	FileName                     string  `json:"fileName"`
	TotalCodes                   int     `json:"totalCodes"`
	TotalDestinations            int     `json:"totalDestinations"`
	UniqueDestinationsPercentage float64 `json:"uniqueDestinationsPercentage"`
}

// CodeReport describes dial code coverage across both decks
type CodeReport struct {
	File1                     FileStats `json:"file1"`
	File2                     FileStats `json:"file2"`
	MatchedCodes              int       `json:"matchedCodes"`
	NonMatchedCodes           int       `json:"nonMatchedCodes"`
	MatchedCodesPercentage    float64   `json:"matchedCodesPercentage"`
	NonMatchedCodesPercentage float64   `json:"nonMatchedCodesPercentage"`
}

// Reports is the result of one comparison
type Reports struct {
	PricingReport PricingReport `json:"pricingReport"`
	CodeReport    CodeReport    `json:"codeReport"`
}

// EntryCount returns the number of rows across all pricing buckets
func (r *PricingReport) EntryCount() int {
	return len(r.HigherRatesForFile1) + len(r.HigherRatesForFile2) + len(r.SameRates) + len(r.NonMatchingCodes)
}
