package moderation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	Logger "github.com/murakami-kaito-dev/bouldering-app-sub000/utils/log"
)

// Verdict is the result of checking a candidate text against the forbidden
// term list.
type Verdict struct {
	Allowed bool
	// MatchedTerms holds every forbidden term found, ordered by first
	// occurrence in the text, ties in term-list order.
	MatchedTerms []string
	// Suggestion is a human-readable hint derived from the first match.
	Suggestion string
}

// TermSource provides the forbidden term list. Swapping the source (e.g. for
// locale) is the only supported customization point.
type TermSource interface {
	Terms() ([]string, error)
}

// StaticTermList is the common TermSource: a fixed ordered list of strings.
type StaticTermList []string

func (l StaticTermList) Terms() ([]string, error) {
	return l, nil
}

// Engine checks text against a forbidden term list. It is stateless and
// deterministic over a fixed list, safe to call from any goroutine without
// synchronization. It never panics outward: any internal failure yields an
// allowed verdict, so a moderation bug can not block legitimate publishing.
type Engine struct {
	source TermSource

	// kanaBoundaryHeuristic discounts Japanese matches embedded in a kanji
	// compound, e.g. 死ね inside 必死ね. The shipped behavior is plain substring
	// containment, the heuristic matches the stated intent of the term-list
	// owner. Which one is live is a policy decision, hence the toggle.
	kanaBoundaryHeuristic bool
}

type Option func(*Engine)

func WithKanaBoundaryHeuristic(enabled bool) Option {
	return func(e *Engine) {
		e.kanaBoundaryHeuristic = enabled
	}
}

func NewEngine(source TermSource, opts ...Option) *Engine {
	e := &Engine{source: source}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check scans the full term list and collects all matches. Empty or
// whitespace-only text is always allowed.
func (e *Engine) Check(text string) (verdict Verdict) {
	// Fail open: a broken term entry or a scanning bug must never block a
	// legitimate post.
	defer func() {
		if r := recover(); r != nil {
			Logger.Log.Error("moderation check panicked, allowing text: ", r)
			verdict = Verdict{Allowed: true}
		}
	}()

	if strings.TrimSpace(text) == "" {
		return Verdict{Allowed: true}
	}

	terms, err := e.source.Terms()
	if err != nil {
		Logger.Log.Error("forbidden term list unavailable, allowing text: ", err)
		return Verdict{Allowed: true}
	}

	lower := strings.ToLower(text)

	type match struct {
		term  string
		index int
	}
	var matches []match
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if idx, ok := e.firstMatch(lower, t); ok {
			matches = append(matches, match{term: term, index: idx})
		}
	}
	if len(matches) == 0 {
		return Verdict{Allowed: true}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].index < matches[j].index
	})

	matched := make([]string, 0, len(matches))
	for _, m := range matches {
		matched = append(matched, m.term)
	}
	return Verdict{
		Allowed:      false,
		MatchedTerms: matched,
		Suggestion:   fmt.Sprintf("「%s」を含む投稿はできません", matched[0]),
	}
}

// HasForbiddenTerm is the short-circuiting variant of Check for fast-path
// keystroke-level validation. It returns true on the first match.
func (e *Engine) HasForbiddenTerm(text string) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Log.Error("moderation scan panicked, allowing text: ", r)
			found = false
		}
	}()

	if strings.TrimSpace(text) == "" {
		return false
	}
	terms, err := e.source.Terms()
	if err != nil {
		Logger.Log.Error("forbidden term list unavailable, allowing text: ", err)
		return false
	}

	lower := strings.ToLower(text)
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if _, ok := e.firstMatch(lower, t); ok {
			return true
		}
	}
	return false
}

// firstMatch returns the byte index of the first accepted occurrence of term
// in text and whether one exists. Matching is script aware: terms containing
// Hiragana, Katakana or CJK ideographs have no whitespace-delimited word
// boundaries and match by containment, Latin-only terms must be flanked by
// non-word characters on both sides.
func (e *Engine) firstMatch(text, term string) (int, bool) {
	if containsJapaneseScript(term) {
		return e.firstJapaneseMatch(text, term)
	}
	return firstBoundedMatch(text, term)
}

func (e *Engine) firstJapaneseMatch(text, term string) (int, bool) {
	from := 0
	for {
		idx := strings.Index(text[from:], term)
		if idx < 0 {
			return 0, false
		}
		abs := from + idx
		if !e.kanaBoundaryHeuristic || !precededByKanji(text, abs) {
			return abs, true
		}
		_, width := utf8.DecodeRuneInString(text[abs:])
		from = abs + width
	}
}

// precededByKanji reports whether the rune immediately before byte offset idx
// is a CJK ideograph. 必死ね embeds 死ね after the kanji 必, while は死ね or a
// leading 死ね is preceded by kana or nothing.
func precededByKanji(text string, idx int) bool {
	if idx == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return unicode.Is(unicode.Han, r)
}

func firstBoundedMatch(text, term string) (int, bool) {
	from := 0
	for {
		idx := strings.Index(text[from:], term)
		if idx < 0 {
			return 0, false
		}
		abs := from + idx
		if boundedAt(text, abs, len(term)) {
			return abs, true
		}
		_, width := utf8.DecodeRuneInString(text[abs:])
		from = abs + width
	}
}

// boundedAt reports whether the occurrence at [idx, idx+n) is flanked by
// start/end of string, whitespace, or a non-word rune on both sides, so that
// e.g. "ass" inside "class" is not flagged.
func boundedAt(text string, idx, n int) bool {
	if idx > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:idx])
		if isWordRune(r) {
			return false
		}
	}
	if idx+n < len(text) {
		r, _ := utf8.DecodeRuneInString(text[idx+n:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func containsJapaneseScript(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
