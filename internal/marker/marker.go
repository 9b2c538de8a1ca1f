// Package marker defines the annotation tokens shared by the prompt builder
// and the evaluation parser.
package marker

import (
	"regexp"
	"strings"
)

const (
	startTag = "STUDENT_START"
	endTag   = "STUDENT_END"

	// Separator divides per-student evaluations from the class-wide
	// analysis in a combined response.
	Separator = "<!--OVERALL_ANALYSIS-->"

	// Honorific follows a student's name when evaluations are written
	// without markers; the parser's fallback anchors on it.
	Honorific = "同学"

	// ExampleName labels the worked example in prompts. It is not a
	// Chinese personal name, so it never collides with a real student,
	// and evaluations carrying it are dropped.
	ExampleName = "Example Student"
)

// Kind distinguishes start and end markers.
type Kind int

const (
	KindStart Kind = iota
	KindEnd
)

// Start returns the opening marker for a student.
func Start(name string) string {
	return "<!--" + startTag + ":" + name + "-->"
}

// End returns the closing marker for a student.
func End(name string) string {
	return "<!--" + endTag + ":" + name + "-->"
}

// Generators sometimes add spaces or use a full-width colon.
var tokenRe = regexp.MustCompile(`<!--\s*(` + startTag + `|` + endTag + `)\s*[:：]\s*(.*?)\s*-->`)

var separatorRe = regexp.MustCompile(`<!--\s*OVERALL_ANALYSIS\s*-->`)

// Token is one marker occurrence in a text.
type Token struct {
	Kind  Kind
	Name  string
	Start int // byte offset of the first byte of the marker
	End   int // byte offset just past the marker
}

// Scan returns every marker in text, in order of appearance.
func Scan(text string) []Token {
	matches := tokenRe.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		kind := KindStart
		if text[m[2]:m[3]] == endTag {
			kind = KindEnd
		}
		tokens = append(tokens, Token{
			Kind:  kind,
			Name:  strings.TrimSpace(text[m[4]:m[5]]),
			Start: m[0],
			End:   m[1],
		})
	}
	return tokens
}

// Strip removes every student marker and separator from text.
func Strip(text string) string {
	text = tokenRe.ReplaceAllString(text, "")
	return separatorRe.ReplaceAllString(text, "")
}

// Split divides text at the first separator. When no separator is present,
// before is the whole text and found is false.
func Split(text string) (before, after string, found bool) {
	loc := separatorRe.FindStringIndex(text)
	if loc == nil {
		return text, "", false
	}
	return text[:loc[0]], text[loc[1]:], true
}
