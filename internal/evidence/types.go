package evidence

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// #region types
// Document is one piece of extracted case text with its relative weight.
// A zero weight is read as 1.0.
type Document struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Entities holds structured values pulled out of the case documents by
// the upstream extraction layer.
type Entities struct {
	Dates     []string `json:"dates"`
	Names     []string `json:"names"`
	Addresses []string `json:"addresses"`
	Phones    []string `json:"phones"`
	Emails    []string `json:"emails"`
}

// CaseEvidence is the input to one analysis call. The engine only reads it.
type CaseEvidence struct {
	CaseType     string     `json:"caseType"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	Documents    []Document `json:"documents"`
	Entities     Entities   `json:"entities"`
}

// #endregion types

// #region document-checks
// Validate reports why a document cannot be analysed, or "" when it can.
func (d Document) Validate() string {
	switch {
	case !utf8.ValidString(d.Text):
		return "text is not valid UTF-8"
	case math.IsNaN(d.Weight) || math.IsInf(d.Weight, 0):
		return "weight is not finite"
	case d.Weight < 0:
		return "weight is negative"
	}
	return ""
}

// #endregion document-checks

// #region entity-helpers
// Dedup returns a copy with blank values dropped and duplicates removed
// (case-insensitive, first spelling wins). Order of first occurrence is kept.
func (e Entities) Dedup() Entities {
	return Entities{
		Dates:     dedup(e.Dates),
		Names:     dedup(e.Names),
		Addresses: dedup(e.Addresses),
		Phones:    dedup(e.Phones),
		Emails:    dedup(e.Emails),
	}
}

// Count is the number of addresses, names, phones and emails. Dates are
// not counted as evidence entities.
func (e Entities) Count() int {
	return len(e.Addresses) + len(e.Names) + len(e.Phones) + len(e.Emails)
}

// Variety is how many of the four evidence entity types are present.
func (e Entities) Variety() int {
	n := 0
	for _, vals := range [][]string{e.Addresses, e.Names, e.Phones, e.Emails} {
		if len(vals) > 0 {
			n++
		}
	}
	return n
}

// HasContact reports whether a phone number or e-mail address is present.
func (e Entities) HasContact() bool {
	return len(e.Phones) > 0 || len(e.Emails) > 0
}

// IsEmpty reports whether no entity of any type is present.
func (e Entities) IsEmpty() bool {
	return len(e.Dates) == 0 && e.Count() == 0
}

// Sorted returns a copy with every list sorted, for stable output.
func (e Entities) Sorted() Entities {
	out := e.Dedup()
	for _, vals := range [][]string{out.Dates, out.Names, out.Addresses, out.Phones, out.Emails} {
		slices.Sort(vals)
	}
	return out
}

func dedup(vals []string) []string {
	out := make([]string, 0, len(vals))
	seen := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// #endregion entity-helpers
