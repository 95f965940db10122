package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxDocumentRunes is the default per-document length cap.
const MaxDocumentRunes = 50000

// #region normalize
// typographic maps the punctuation OCR and word processors emit to the
// ASCII forms keywords are written in. NFKC leaves these alone.
var typographic = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`,
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-",
	"\u00ad", "",
)

// Normalize folds compatibility characters (ligatures, full-width forms,
// superscripts) with NFKC and maps typographic quotes and dashes to ASCII.
func Normalize(s string) string {
	return typographic.Replace(norm.NFKC.String(s))
}

// Truncate caps s at maxRunes runes. The second result reports whether
// anything was cut.
func Truncate(s string, maxRunes int) (string, bool) {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i], true
		}
		n++
	}
	return s, false
}

// #endregion normalize

// #region matcher
// Matcher finds case-insensitive, word-boundary occurrences of a keyword.
// Words of a multi-word keyword may be separated by any run of whitespace.
type Matcher struct {
	keyword   string
	multiWord bool
	re        *regexp.Regexp
}

// NewMatcher compiles a matcher for keyword.
func NewMatcher(keyword string) (*Matcher, error) {
	words := strings.Fields(Normalize(keyword))
	if len(words) == 0 {
		return nil, fmt.Errorf("empty keyword %q", keyword)
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(`(?i)\b` + strings.Join(quoted, `\s+`) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("compile keyword %q: %w", keyword, err)
	}
	return &Matcher{keyword: keyword, multiWord: len(words) > 1, re: re}, nil
}

// Keyword returns the keyword as configured.
func (m *Matcher) Keyword() string { return m.keyword }

// MultiWord reports whether the keyword has more than one word.
func (m *Matcher) MultiWord() bool { return m.multiWord }

// Count returns the number of non-overlapping matches in text.
func (m *Matcher) Count(text string) int {
	return len(m.re.FindAllStringIndex(text, -1))
}

// Contains reports whether text has at least one match.
func (m *Matcher) Contains(text string) bool {
	return m.re.MatchString(text)
}

// FindAll returns the byte offsets of every match in text.
func (m *Matcher) FindAll(text string) [][]int {
	return m.re.FindAllStringIndex(text, -1)
}

// #endregion matcher

// #region window
// Window returns the match text[start:end] with up to n runes on each side,
// trimmed of surrounding whitespace. Offsets are byte offsets on rune
// boundaries, as returned by FindAll.
func Window(text string, start, end, n int) string {
	lo := start
	for i := 0; i < n && lo > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:lo])
		lo -= size
	}
	hi := end
	for i := 0; i < n && hi < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[hi:])
		hi += size
	}
	return strings.TrimSpace(text[lo:hi])
}

// #endregion window
