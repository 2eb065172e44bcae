package sync

import (
	"fmt"
	"regexp"
	"strings"
)

// IgnoreFilter matches page names against a list of operator-supplied
// regular expressions. Patterns are anchored at the start of the name, so
// "Trac.*" behaves as a prefix pattern. A pattern prefixed with "!" is an
// exception: a name it fully matches is never considered ignored, even
// when another pattern matches it.
type IgnoreFilter struct {
	regexps    []*regexp.Regexp
	exceptions []*regexp.Regexp
}

// NewIgnoreFilter compiles a whitespace-separated pattern list into a
// filter. An empty list yields a filter that matches nothing.
func NewIgnoreFilter(patterns string) (*IgnoreFilter, error) {
	f := &IgnoreFilter{}

	for _, p := range strings.Fields(patterns) {
		if exception, ok := strings.CutPrefix(p, "!"); ok {
			re, err := regexp.Compile("^(?:" + exception + ")$")
			if err != nil {
				return nil, fmt.Errorf("%w: ignore pattern %q: %v", ErrValidation, p, err)
			}

			f.exceptions = append(f.exceptions, re)

			continue
		}

		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: ignore pattern %q: %v", ErrValidation, p, err)
		}

		f.regexps = append(f.regexps, re)
	}

	return f, nil
}

// Matches reports whether any pattern matches the start of name and no
// exception pattern matches it whole.
func (f *IgnoreFilter) Matches(name string) bool {
	if f == nil {
		return false
	}

	for _, re := range f.exceptions {
		if re.MatchString(name) {
			return false
		}
	}

	for _, re := range f.regexps {
		if re.MatchString(name) {
			return true
		}
	}

	return false
}
