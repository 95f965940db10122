package taxonomy

import (
	"strings"

	"github.com/smartdispute/case-engine/internal/textnorm"
)

// #region category
// Category is a legal-issue family. The set is closed; ParseCategory
// rejects anything not listed here.
type Category string

const (
	LandlordTenant   Category = "landlord-tenant"
	Credit           Category = "credit"
	HumanRights      Category = "human-rights"
	SmallClaims      Category = "small-claims"
	ChildProtection  Category = "child-protection"
	PoliceMisconduct Category = "police-misconduct"
	Employment       Category = "employment"
	Family           Category = "family"
)

var allCategories = []Category{
	LandlordTenant, Credit, HumanRights, SmallClaims,
	ChildProtection, PoliceMisconduct, Employment, Family,
}

// AllCategories returns every known category in declaration order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range allCategories {
		if c == k {
			return true
		}
	}
	return false
}

// ParseCategory maps a free-form case type ("landlord_tenant",
// "Human Rights", "small-claims") onto a Category.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), "-")
	c := Category(s)
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// #endregion category

// #region urgency
// Urgency is the time pressure of an issue type or remedy.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank orders urgencies low < medium < high < critical. Unknown values rank 0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	}
	return 0
}

// ParseUrgency parses a case-insensitive urgency name. Empty means medium.
func ParseUrgency(s string) (Urgency, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return UrgencyMedium, true
	}
	u := Urgency(s)
	if u.Rank() == 0 {
		return "", false
	}
	return u, true
}

// #endregion urgency

// #region specs
// IssueType is a specific sub-claim within a category.
type IssueType struct {
	ID               string
	Name             string
	Description      string
	RequiredKeywords []string
	Urgency          Urgency

	matchers []*textnorm.Matcher
}

// Matchers returns the compiled required-keyword matchers, in keyword order.
func (it IssueType) Matchers() []*textnorm.Matcher { return it.matchers }

// CategorySpec is the keyword profile of one category.
type CategorySpec struct {
	Category   Category
	Keywords   []string
	Related    []Category
	IssueTypes []IssueType

	matchers []*textnorm.Matcher
}

// Matchers returns the compiled keyword matchers, in keyword order.
func (cs CategorySpec) Matchers() []*textnorm.Matcher { return cs.matchers }

// Remedy is a form or workflow the ranker may recommend.
type Remedy struct {
	ID              string
	Name            string
	Description     string
	Category        Category
	Preconditions   []string // issue-type IDs
	Jurisdictions   []string // empty or "ALL" means any
	Urgency         Urgency
	BaseSuccessRate float64
	Cost            string
	LegalRefs       []string
}

// JurisdictionAgnostic reports whether the remedy applies everywhere.
func (r Remedy) JurisdictionAgnostic() bool {
	if len(r.Jurisdictions) == 0 {
		return true
	}
	for _, j := range r.Jurisdictions {
		if strings.EqualFold(j, "ALL") {
			return true
		}
	}
	return false
}

// CoversJurisdiction reports whether the remedy is available in j.
func (r Remedy) CoversJurisdiction(j string) bool {
	if r.JurisdictionAgnostic() {
		return true
	}
	for _, rj := range r.Jurisdictions {
		if strings.EqualFold(rj, j) {
			return true
		}
	}
	return false
}

// #endregion specs
