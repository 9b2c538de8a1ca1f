// Package evaluation recovers per-student evaluations from generated text.
//
// Marker pairs are the primary source. When markers are missing or broken,
// a heuristic pass looks for name-like anchors in the remaining text. The
// heuristic results are dropped wholesale when they outnumber the marker
// results by too much, since that usually means the generator ignored the
// format entirely.
package evaluation

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/abhisek/classeval/internal/logger"
	"github.com/abhisek/classeval/internal/marker"
)

// Options tunes the heuristic fallback.
type Options struct {
	// FallbackRatio bounds fallback results relative to marker results.
	// With a non-zero marker count, more than MarkerCount*FallbackRatio
	// fallback results are all discarded.
	FallbackRatio float64

	// MinFallbackRunes is the minimum length of a fallback body.
	MinFallbackRunes int

	// DisableFallback turns the heuristic pass off.
	DisableFallback bool
}

// DefaultOptions returns the default parser options.
func DefaultOptions() Options {
	return Options{
		FallbackRatio:    0.5,
		MinFallbackRunes: 10,
	}
}

// Parser extracts evaluations. It holds no per-parse state and is safe for
// concurrent use.
type Parser struct {
	opts Options
	log  *logger.Logger
}

// NewParser creates a Parser. A nil logger discards data-quality warnings.
func NewParser(opts Options, log *logger.Logger) *Parser {
	d := DefaultOptions()
	if opts.FallbackRatio < 0 {
		opts.FallbackRatio = d.FallbackRatio
	}
	if opts.MinFallbackRunes <= 0 {
		opts.MinFallbackRunes = d.MinFallbackRunes
	}
	return &Parser{opts: opts, log: logger.OrNop(log)}
}

// Parse returns the recovered evaluations in output order.
func (p *Parser) Parse(raw string) []StudentEvaluation {
	return p.ParseDetailed(raw).Evaluations
}

// ParseDetailed parses raw and reports how each evaluation was found.
func (p *Parser) ParseDetailed(raw string) Result {
	before, after, _ := marker.Split(raw)

	var res Result
	res.Overall = strings.TrimSpace(marker.Strip(after))

	marked, remainder := p.scanMarkers(before, &res)
	res.MarkerCount = len(marked)

	captured := make(map[string]struct{}, len(marked))
	for _, e := range marked {
		captured[e.Name] = struct{}{}
	}

	var fallback []StudentEvaluation
	if !p.opts.DisableFallback && needsFallback(len(marked), len(res.Unmatched), remainder) {
		fallback = extractFallback(remainder, captured, p.opts.MinFallbackRunes)
	}
	res.FallbackCount = len(fallback)

	if len(marked) > 0 && float64(len(fallback)) > float64(len(marked))*p.opts.FallbackRatio {
		p.log.Warn("discarding fallback evaluations",
			"marker_count", len(marked),
			"fallback_count", len(fallback),
			"ratio", p.opts.FallbackRatio,
		)
		res.FallbackDiscarded = true
		fallback = nil
	} else if len(fallback) > 0 {
		p.log.Warn("recovered evaluations without markers",
			"marker_count", len(marked),
			"fallback_count", len(fallback),
		)
	}

	res.Evaluations = append(marked, fallback...)
	for i := range res.Evaluations {
		res.Evaluations[i].Index = i
	}
	return res
}

// scanMarkers extracts marker pairs from text and returns the evaluations
// together with the text left outside any pair. Stray markers are removed
// from the remainder.
func (p *Parser) scanMarkers(text string, res *Result) ([]StudentEvaluation, string) {
	tokens := marker.Scan(text)

	var (
		evals     []StudentEvaluation
		remainder strings.Builder
		seen      = make(map[string]struct{})
		cursor    int
	)

	for i := 0; i < len(tokens); {
		tok := tokens[i]
		remainder.WriteString(text[cursor:tok.Start])
		remainder.WriteString("\n\n")

		j := pairEnd(tokens, i)
		if j < 0 {
			if tok.Kind == marker.KindStart {
				p.log.Warn("start marker without matching end marker", "name", tok.Name)
				res.Unmatched = append(res.Unmatched, tok.Name)
			}
			cursor = tok.End
			i++
			continue
		}

		name := normalizeName(tok.Name)
		body := strings.TrimSpace(marker.Strip(text[tok.End:tokens[j].Start]))
		switch {
		case name == marker.ExampleName:
			p.log.Debug("dropping echoed prompt example")
		case body == "":
			p.log.Warn("empty evaluation between markers", "name", name)
			res.Unmatched = append(res.Unmatched, name)
		case contains(seen, name):
			p.log.Warn("duplicate evaluation for student", "name", name)
			res.Duplicates = append(res.Duplicates, name)
		default:
			seen[name] = struct{}{}
			evals = append(evals, StudentEvaluation{Name: name, Text: body, Source: SourceMarker})
		}
		cursor = tokens[j].End
		i = j + 1
	}
	remainder.WriteString(text[cursor:])

	return evals, remainder.String()
}

// pairEnd returns the index of the end marker closing tokens[i], or -1.
// Another start marker before the matching end breaks the pair.
func pairEnd(tokens []marker.Token, i int) int {
	start := tokens[i]
	if start.Kind != marker.KindStart || start.Name == "" {
		return -1
	}
	want := normalizeName(start.Name)
	for j := i + 1; j < len(tokens); j++ {
		if tokens[j].Kind == marker.KindStart {
			return -1
		}
		if normalizeName(tokens[j].Name) == want {
			return j
		}
	}
	return -1
}

// needsFallback reports whether markers are wholly or partly missing.
func needsFallback(marked, unmatched int, remainder string) bool {
	return marked == 0 || unmatched > 0 || strings.TrimSpace(remainder) != ""
}

// Overall returns the class-wide analysis following the separator, or ""
// when raw has no separator.
func Overall(raw string) string {
	_, after, found := marker.Split(raw)
	if !found {
		return ""
	}
	return strings.TrimSpace(marker.Strip(after))
}

// normalizeName folds compatibility forms and surrounding space so that
// 'ＡＢ' and 'AB' compare equal.
func normalizeName(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func contains(set map[string]struct{}, k string) bool {
	_, ok := set[k]
	return ok
}
