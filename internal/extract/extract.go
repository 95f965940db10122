package extract

import (
	"regexp"
	"strings"

	"github.com/smartdispute/case-engine/internal/evidence"
	"github.com/smartdispute/case-engine/internal/textnorm"
)

// #region patterns
var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2},? \d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2} (?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{4}\b`),
	}

	honorificName = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof|Hon)\.?[ \t]+[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*\b`)
	plainName     = regexp.MustCompile(`\b[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){1,2}\b`)

	addressPattern = regexp.MustCompile(`(?i)\b\d+[ \t]+(?:[a-z0-9.'-]+[ \t]+){1,4}` +
		`(?:avenue|ave|boulevard|blvd|circle|cir|court|ct|drive|dr|lane|ln|parkway|pkwy|place|pl|plaza|plz|road|rd|square|sq|street|st|way)\b\.?` +
		`(?:,?[ \t]+[a-z .'-]+?)??(?:,?[ \t]+[a-z]{2})?,?[ \t]+[a-z]\d[a-z][ \t]?\d[a-z]\d\b`)

	phonePattern = regexp.MustCompile(`(?:\(\d{3}\)[ \t]?|\b\d{3}[-. \t]?)\d{3}[-. \t]?\d{4}\b`)

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// notNames are capitalised words that start phrases the plain name
// pattern would otherwise take for a person.
var notNames = map[string]bool{
	"The": true, "This": true, "That": true, "My": true, "Our": true, "Your": true,
	"On": true, "In": true, "At": true, "To": true, "From": true, "Dear": true,
	"Landlord": true, "Tenant": true, "Board": true, "Court": true, "Tribunal": true,
	"Superior": true, "Small": true, "Human": true, "Children": true, "Police": true,
	"Form": true, "Notice": true, "Street": true, "Avenue": true, "Road": true,
	"Ontario": true, "Canada": true, "Toronto": true,
	"January": true, "February": true, "March": true, "April": true, "May": true, "June": true,
	"July": true, "August": true, "September": true, "October": true, "November": true, "December": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true, "Friday": true,
	"Saturday": true, "Sunday": true,
}

// #endregion patterns

// #region extract
// Entities pulls dates, names, addresses, phone numbers and e-mail
// addresses out of text. Each list is de-duplicated and sorted.
func Entities(text string) evidence.Entities {
	text = textnorm.Normalize(text)
	var e evidence.Entities
	for _, re := range datePatterns {
		e.Dates = append(e.Dates, re.FindAllString(text, -1)...)
	}
	e.Names = names(text)
	e.Addresses = addressPattern.FindAllString(text, -1)
	e.Phones = phonePattern.FindAllString(text, -1)
	e.Emails = emailPattern.FindAllString(text, -1)
	return e.Sorted()
}

// FromDocuments extracts entities from every well-formed document.
func FromDocuments(docs []evidence.Document) evidence.Entities {
	var all evidence.Entities
	for _, d := range docs {
		if d.Validate() != "" {
			continue
		}
		e := Entities(d.Text)
		all.Dates = append(all.Dates, e.Dates...)
		all.Names = append(all.Names, e.Names...)
		all.Addresses = append(all.Addresses, e.Addresses...)
		all.Phones = append(all.Phones, e.Phones...)
		all.Emails = append(all.Emails, e.Emails...)
	}
	return all.Sorted()
}

func names(text string) []string {
	out := honorificName.FindAllString(text, -1)
	for _, m := range plainName.FindAllString(text, -1) {
		words := strings.Fields(m)
		if notNames[words[0]] || notNames[words[len(words)-1]] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// #endregion extract
