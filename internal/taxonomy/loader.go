package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultYAML []byte

// #region file-types
// File is the YAML shape of a taxonomy.
type File struct {
	Categories []FileCategory `yaml:"categories"`
	Remedies   []FileRemedy   `yaml:"remedies"`
}

// FileCategory is one category entry in a taxonomy file.
type FileCategory struct {
	Category   string          `yaml:"category"`
	Keywords   []string        `yaml:"keywords"`
	Related    []string        `yaml:"related,omitempty"`
	IssueTypes []FileIssueType `yaml:"issue_types"`
}

// FileIssueType is one issue type entry in a taxonomy file.
type FileIssueType struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description,omitempty"`
	RequiredKeywords []string `yaml:"required_keywords"`
	Urgency          string   `yaml:"urgency,omitempty"`
}

// FileRemedy is one remedy entry in a taxonomy file.
type FileRemedy struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description,omitempty"`
	Category        string   `yaml:"category"`
	Preconditions   []string `yaml:"preconditions,omitempty"`
	Jurisdictions   []string `yaml:"jurisdictions,omitempty"`
	Urgency         string   `yaml:"urgency,omitempty"`
	BaseSuccessRate float64  `yaml:"base_success_rate"`
	Cost            string   `yaml:"cost,omitempty"`
	LegalRefs       []string `yaml:"legal_refs,omitempty"`
}

// #endregion file-types

// #region loaders
// Default returns the built-in taxonomy.
func Default() (*Taxonomy, error) {
	return Parse(defaultYAML, "default taxonomy")
}

// MustDefault is Default for process start-up; it panics on a broken
// built-in table.
func MustDefault() *Taxonomy {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads a YAML taxonomy from path.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a YAML taxonomy. source names the input in errors.
func Parse(data []byte, source string) (*Taxonomy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Source: source, Problems: []string{fmt.Sprintf("parse yaml: %v", err)}}
	}
	return f.Build(source)
}

// Build converts the file form into a validated Taxonomy.
func (f *File) Build(source string) (*Taxonomy, error) {
	var problems []string
	cats := make([]CategorySpec, 0, len(f.Categories))
	for _, fc := range f.Categories {
		c, ok := ParseCategory(fc.Category)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown category %q", fc.Category))
			continue
		}
		cs := CategorySpec{Category: c, Keywords: fc.Keywords}
		for _, r := range fc.Related {
			rc, ok := ParseCategory(r)
			if !ok {
				problems = append(problems, fmt.Sprintf("category %q: unknown related category %q", fc.Category, r))
				continue
			}
			cs.Related = append(cs.Related, rc)
		}
		for _, fi := range fc.IssueTypes {
			u, ok := ParseUrgency(fi.Urgency)
			if !ok {
				problems = append(problems, fmt.Sprintf("issue type %q: unknown urgency %q", fi.ID, fi.Urgency))
			}
			cs.IssueTypes = append(cs.IssueTypes, IssueType{
				ID:               fi.ID,
				Name:             fi.Name,
				Description:      fi.Description,
				RequiredKeywords: fi.RequiredKeywords,
				Urgency:          u,
			})
		}
		cats = append(cats, cs)
	}

	remedies := make([]Remedy, 0, len(f.Remedies))
	for _, fr := range f.Remedies {
		c, ok := ParseCategory(fr.Category)
		if !ok {
			problems = append(problems, fmt.Sprintf("remedy %q: unknown category %q", fr.ID, fr.Category))
		}
		u, ok := ParseUrgency(fr.Urgency)
		if !ok {
			problems = append(problems, fmt.Sprintf("remedy %q: unknown urgency %q", fr.ID, fr.Urgency))
		}
		remedies = append(remedies, Remedy{
			ID:              fr.ID,
			Name:            fr.Name,
			Description:     fr.Description,
			Category:        c,
			Preconditions:   fr.Preconditions,
			Jurisdictions:   fr.Jurisdictions,
			Urgency:         u,
			BaseSuccessRate: fr.BaseSuccessRate,
			Cost:            fr.Cost,
			LegalRefs:       fr.LegalRefs,
		})
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Source: source, Problems: problems}
	}

	t, err := New(cats, remedies)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Source = source
		}
		return nil, err
	}
	return t, nil
}

// #endregion loaders

// #region export
// ToFile converts t back to its file form.
func (t *Taxonomy) ToFile() File {
	var f File
	for _, cs := range t.categories {
		fc := FileCategory{Category: string(cs.Category), Keywords: cs.Keywords}
		for _, r := range cs.Related {
			fc.Related = append(fc.Related, string(r))
		}
		for _, it := range cs.IssueTypes {
			fc.IssueTypes = append(fc.IssueTypes, FileIssueType{
				ID:               it.ID,
				Name:             it.Name,
				Description:      it.Description,
				RequiredKeywords: it.RequiredKeywords,
				Urgency:          string(it.Urgency),
			})
		}
		f.Categories = append(f.Categories, fc)
	}
	for _, r := range t.remedies {
		f.Remedies = append(f.Remedies, FileRemedy{
			ID:              r.ID,
			Name:            r.Name,
			Description:     r.Description,
			Category:        string(r.Category),
			Preconditions:   r.Preconditions,
			Jurisdictions:   r.Jurisdictions,
			Urgency:         string(r.Urgency),
			BaseSuccessRate: r.BaseSuccessRate,
			Cost:            r.Cost,
			LegalRefs:       r.LegalRefs,
		})
	}
	return f
}

// MarshalYAML renders t in the same YAML layout Parse reads.
func (t *Taxonomy) MarshalYAML() (any, error) {
	return t.ToFile(), nil
}

// #endregion export
