package taxonomy

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/smartdispute/case-engine/internal/textnorm"
)

// #region config-error
// ConfigError reports a taxonomy that cannot be used. It is only ever
// returned at start-up.
type ConfigError struct {
	Source   string
	Problems []string
}

func (e *ConfigError) Error() string {
	src := e.Source
	if src == "" {
		src = "taxonomy"
	}
	if len(e.Problems) == 1 {
		return fmt.Sprintf("%s: %s", src, e.Problems[0])
	}
	return fmt.Sprintf("%s: %d problems: %s", src, len(e.Problems), strings.Join(e.Problems, "; "))
}

// #endregion config-error

// #region taxonomy
// Taxonomy is the immutable category, issue-type and remedy configuration.
// It is built once and shared read-only by every analysis.
type Taxonomy struct {
	categories []CategorySpec
	byCategory map[Category]int
	issues     map[string]issueRef
	remedies   []Remedy
	byRemedy   map[string]int
}

type issueRef struct {
	category Category
	index    int
}

// New validates the tables, compiles keyword matchers and returns a
// Taxonomy. The inputs are copied; later changes to them have no effect.
func New(categories []CategorySpec, remedies []Remedy) (*Taxonomy, error) {
	t := &Taxonomy{
		byCategory: make(map[Category]int, len(categories)),
		issues:     make(map[string]issueRef),
		byRemedy:   make(map[string]int, len(remedies)),
	}
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(categories) == 0 {
		addf("no categories")
	}

	// 1. Categories and issue types
	for _, in := range categories {
		if !in.Category.Valid() {
			addf("unknown category %q", in.Category)
			continue
		}
		if _, dup := t.byCategory[in.Category]; dup {
			addf("duplicate category %q", in.Category)
			continue
		}
		cs := CategorySpec{
			Category: in.Category,
			Keywords: slices.Clone(in.Keywords),
			Related:  slices.Clone(in.Related),
		}
		if len(cs.Keywords) == 0 {
			addf("category %q has no keywords", cs.Category)
		}
		for _, kw := range cs.Keywords {
			m, err := textnorm.NewMatcher(kw)
			if err != nil {
				addf("category %q: %v", cs.Category, err)
				continue
			}
			cs.matchers = append(cs.matchers, m)
		}
		for _, rel := range cs.Related {
			if !rel.Valid() {
				addf("category %q: unknown related category %q", cs.Category, rel)
			}
		}
		for _, it := range in.IssueTypes {
			it.RequiredKeywords = slices.Clone(it.RequiredKeywords)
			it.matchers = nil
			switch {
			case it.ID == "":
				addf("category %q: issue type without id", cs.Category)
				continue
			case t.hasIssue(it.ID):
				addf("duplicate issue type %q", it.ID)
				continue
			case len(it.RequiredKeywords) == 0:
				addf("issue type %q has no required keywords", it.ID)
			}
			if it.Urgency == "" {
				it.Urgency = UrgencyMedium
			} else if it.Urgency.Rank() == 0 {
				addf("issue type %q: unknown urgency %q", it.ID, it.Urgency)
			}
			for _, kw := range it.RequiredKeywords {
				m, err := textnorm.NewMatcher(kw)
				if err != nil {
					addf("issue type %q: %v", it.ID, err)
					continue
				}
				it.matchers = append(it.matchers, m)
			}
			t.issues[it.ID] = issueRef{category: cs.Category, index: len(cs.IssueTypes)}
			cs.IssueTypes = append(cs.IssueTypes, it)
		}
		t.byCategory[cs.Category] = len(t.categories)
		t.categories = append(t.categories, cs)
	}

	// 2. Remedy catalogue
	for _, r := range remedies {
		r.Preconditions = slices.Clone(r.Preconditions)
		r.Jurisdictions = slices.Clone(r.Jurisdictions)
		r.LegalRefs = slices.Clone(r.LegalRefs)
		switch {
		case r.ID == "":
			addf("remedy without id")
			continue
		case t.hasRemedy(r.ID):
			addf("duplicate remedy %q", r.ID)
			continue
		}
		if !r.Category.Valid() {
			addf("remedy %q: unknown category %q", r.ID, r.Category)
		}
		if r.Urgency == "" {
			r.Urgency = UrgencyMedium
		} else if r.Urgency.Rank() == 0 {
			addf("remedy %q: unknown urgency %q", r.ID, r.Urgency)
		}
		if math.IsNaN(r.BaseSuccessRate) || r.BaseSuccessRate < 0 || r.BaseSuccessRate > 1 {
			addf("remedy %q: base success rate %v outside [0,1]", r.ID, r.BaseSuccessRate)
		}
		for _, p := range r.Preconditions {
			if !t.hasIssue(p) {
				addf("remedy %q: precondition %q is not an issue type", r.ID, p)
			}
		}
		t.byRemedy[r.ID] = len(t.remedies)
		t.remedies = append(t.remedies, r)
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return t, nil
}

func (t *Taxonomy) hasIssue(id string) bool {
	_, ok := t.issues[id]
	return ok
}

func (t *Taxonomy) hasRemedy(id string) bool {
	_, ok := t.byRemedy[id]
	return ok
}

// #endregion taxonomy

// #region accessors
// Callers must treat every slice reachable from the returned values as
// read-only.

// Categories returns the category specs in taxonomy order.
func (t *Taxonomy) Categories() []CategorySpec {
	return slices.Clone(t.categories)
}

// Spec returns the keyword profile of c.
func (t *Taxonomy) Spec(c Category) (CategorySpec, bool) {
	i, ok := t.byCategory[c]
	if !ok {
		return CategorySpec{}, false
	}
	return t.categories[i], true
}

// Order returns c's position in the taxonomy, or -1.
func (t *Taxonomy) Order(c Category) int {
	if i, ok := t.byCategory[c]; ok {
		return i
	}
	return -1
}

// IssueType looks up an issue type by ID and returns it with its category.
func (t *Taxonomy) IssueType(id string) (IssueType, Category, bool) {
	ref, ok := t.issues[id]
	if !ok {
		return IssueType{}, "", false
	}
	return t.categories[t.byCategory[ref.category]].IssueTypes[ref.index], ref.category, true
}

// Remedies returns the remedy catalogue in insertion order.
func (t *Taxonomy) Remedies() []Remedy {
	return slices.Clone(t.remedies)
}

// Remedy looks up a remedy by ID.
func (t *Taxonomy) Remedy(id string) (Remedy, bool) {
	i, ok := t.byRemedy[id]
	if !ok {
		return Remedy{}, false
	}
	return t.remedies[i], true
}

// Related reports whether a and b are declared related in either direction.
func (t *Taxonomy) Related(a, b Category) bool {
	if sa, ok := t.Spec(a); ok && slices.Contains(sa.Related, b) {
		return true
	}
	if sb, ok := t.Spec(b); ok && slices.Contains(sb.Related, a) {
		return true
	}
	return false
}

// #endregion accessors
