package comparison

import (
	rderrors "ratedeck/pkg/errors"
)

// RateKind selects one of the three US jurisdictional rates
type RateKind string

const (
	Interstate    RateKind = "interstate"
	Intrastate    RateKind = "intrastate"
	Indeterminate RateKind = "indeterminate"
)

// RateKinds lists the US rate kinds in report order
var RateKinds = []RateKind{Interstate, Intrastate, Indeterminate}

// USRecord is one NPANXX row of a US rate deck
type USRecord struct {
	NPANXX    string  `json:"npanxx"`
	State     string  `json:"state,omitempty"`
	InterRate float64 `json:"interRate"`
	IntraRate float64 `json:"intraRate"`
	IJRate    float64 `json:"ijRate"`
}

// NPA returns the area code part of the NPANXX
func (r USRecord) NPA() string {
	if len(r.NPANXX) < 3 {
		return r.NPANXX
	}
	return r.NPANXX[:3]
}

// NXX returns the exchange part of the NPANXX
func (r USRecord) NXX() string {
	if len(r.NPANXX) < 3 {
		return ""
	}
	return r.NPANXX[3:]
}

// Rate returns the rate for the given kind
func (r USRecord) Rate(kind RateKind) float64 {
	switch kind {
	case Intrastate:
		return r.IntraRate
	case Indeterminate:
		return r.IJRate
	default:
		return r.InterRate
	}
}

// USInput holds the two named US decks to compare
type USInput struct {
	FileName1 string     `json:"fileName1"`
	FileName2 string     `json:"fileName2"`
	File1Data []USRecord `json:"file1Data"`
	File2Data []USRecord `json:"file2Data"`
}

// Validate checks that both names and both datasets are present
func (in USInput) Validate() error {
	if in.FileName1 == "" || in.FileName2 == "" || in.File1Data == nil || in.File2Data == nil {
		return rderrors.NewInvalidInputError()
	}
	return nil
}

// USReports holds one pricing report per rate kind and the NPANXX coverage
type USReports struct {
	Interstate    PricingReport `json:"interstate"`
	Intrastate    PricingReport `json:"intrastate"`
	Indeterminate PricingReport `json:"indeterminate"`
	CodeReport    CodeReport    `json:"codeReport"`
}

// Report returns the pricing report for kind
func (r *USReports) Report(kind RateKind) *PricingReport {
	switch kind {
	case Intrastate:
		return &r.Intrastate
	case Indeterminate:
		return &r.Indeterminate
	default:
		return &r.Interstate
	}
}

// CompareUS runs the deck comparison once per US rate kind, keyed by NPANXX.
// Destinations are states, or the NPA when a row carries no state.
func CompareUS(input USInput) (*USReports, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	out := &USReports{}
	for _, kind := range RateKinds {
		reports, err := GenerateReports(Input{
			FileName1: input.FileName1,
			FileName2: input.FileName2,
			File1Data: projectUS(input.File1Data, kind),
			File2Data: projectUS(input.File2Data, kind),
		})
		if err != nil {
			return nil, err
		}
		*out.Report(kind) = reports.PricingReport
		if kind == Interstate {
			out.CodeReport = reports.CodeReport
		}
	}
	return out, nil
}

func projectUS(records []USRecord, kind RateKind) []StandardizedRecord {
	out := make([]StandardizedRecord, 0, len(records))
	for _, r := range records {
		dest := r.State
		if dest == "" {
			dest = r.NPA()
		}
		out = append(out, StandardizedRecord{
			DialCode: r.NPANXX,
			DestName: dest,
			Rate:     r.Rate(kind),
		})
	}
	return out
}
