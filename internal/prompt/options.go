package prompt

// Options controls what the builder advertises to the generator. They are
// requests, not guarantees: the parser copes with output that ignores them.
type Options struct {
	// UseAnnotations emits the start/end marker contract.
	UseAnnotations bool

	// MinLength and MaxLength are the per-student length window, in words
	// (characters for Chinese text).
	MinLength int
	MaxLength int

	// IncludeExamples emits a worked example of the wrapped format.
	IncludeExamples bool

	// Language is the language the evaluations should be written in.
	Language string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		UseAnnotations:  true,
		MinLength:       80,
		MaxLength:       150,
		IncludeExamples: true,
		Language:        "Simplified Chinese",
	}
}

// normalized fills zero values and repairs an inverted length window.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.MinLength <= 0 {
		o.MinLength = d.MinLength
	}
	if o.MaxLength <= 0 {
		o.MaxLength = d.MaxLength
	}
	if o.MaxLength < o.MinLength {
		o.MinLength, o.MaxLength = o.MaxLength, o.MinLength
	}
	if o.Language == "" {
		o.Language = d.Language
	}
	return o
}
