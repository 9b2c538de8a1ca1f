package evaluation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abhisek/classeval/internal/marker"
)

const (
	minNameRunes = 2
	maxNameRunes = 4
)

// anchorRe matches what commonly follows a student's name in free text:
// the honorific 同学, or a seat number such as (12) or （12号）.
var anchorRe = regexp.MustCompile(regexp.QuoteMeta(marker.Honorific) + `|[(（]\s*[0-9０-９]+\s*号?\s*[)）]`)

var paragraphRe = regexp.MustCompile(`\n[ \t\r\x{3000}]*\n`)

// candidate is a name found in front of an anchor.
type candidate struct {
	name  string
	start int // byte offset of the name
}

// extractFallback recovers evaluations from unannotated text. Names already
// in captured are ignored.
func extractFallback(text string, captured map[string]struct{}, minRunes int) []StudentEvaluation {
	cands := findCandidates(text)
	breaks := paragraphRe.FindAllStringIndex(text, -1)

	var out []StudentEvaluation
	accepted := make(map[string]struct{})
	for i, c := range cands {
		if contains(captured, c.name) || contains(accepted, c.name) {
			continue
		}

		end := len(text)
		for _, next := range cands[i+1:] {
			if next.name != c.name {
				end = next.start
				break
			}
		}
		for _, b := range breaks {
			if b[0] > c.start {
				end = min(end, b[0])
				break
			}
		}

		body := strings.TrimSpace(text[c.start:end])
		if utf8.RuneCountInString(body) < minRunes || meaningfulTokens(body) < 2 {
			continue
		}
		accepted[c.name] = struct{}{}
		out = append(out, StudentEvaluation{Name: c.name, Text: body, Source: SourceFallback})
	}
	return out
}

// findCandidates returns the name candidates in text order.
func findCandidates(text string) []candidate {
	var cands []candidate
	for _, loc := range anchorRe.FindAllStringIndex(text, -1) {
		if c, ok := nameBefore(text, loc[0]); ok {
			cands = append(cands, c)
		}
	}
	return cands
}

// nameBefore picks a name from the Han characters ending at pos. A name that
// starts at a boundary or after a connective particle wins, longest first;
// otherwise the shortest valid suffix is used.
func nameBefore(text string, pos int) (candidate, bool) {
	// offsets[k] is the start of the suffix of k+1 runes.
	var offsets []int
	i := pos
	for len(offsets) < maxNameRunes && i > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if !unicode.Is(unicode.Han, r) {
			break
		}
		i -= size
		offsets = append(offsets, i)
	}

	for n := len(offsets); n >= minNameRunes; n-- {
		start := offsets[n-1]
		name := text[start:pos]
		if validName(name) && atBoundary(text, start) {
			return candidate{name: normalizeName(name), start: start}, true
		}
	}
	for n := minNameRunes; n <= len(offsets); n++ {
		start := offsets[n-1]
		name := text[start:pos]
		if validName(name) {
			return candidate{name: normalizeName(name), start: start}, true
		}
	}
	return candidate{}, false
}

// atBoundary reports whether a name starting at pos is preceded by a
// non-Han character, the start of text, or a connective particle.
func atBoundary(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	if !unicode.Is(unicode.Han, r) {
		return true
	}
	_, ok := connectives[r]
	return ok
}

func validName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minNameRunes || n > maxNameRunes {
		return false
	}
	if _, stop := stopwords[name]; stop {
		return false
	}
	lead, _ := utf8.DecodeRuneInString(name)
	_, ok := surnameLeads[lead]
	return ok
}

// meaningfulTokens counts multi-character tokens that carry content: not
// only digits, punctuation, or Latin letters.
func meaningfulTokens(s string) int {
	count := 0
	for _, tok := range strings.FieldsFunc(s, isTokenBreak) {
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		for _, r := range tok {
			if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
				count++
				break
			}
		}
	}
	return count
}

func isTokenBreak(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
