package chains

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/agenthands/atag/internal/core/model"
)

// TokenPattern separates words from everything else: each character that is not a
// word character becomes a token of its own. Word characters are letters, combining
// marks, decimal digits, connector punctuation and the zero-width (non-)joiners, so
// decomposed accents and Indic vowel signs stay inside their word.
const TokenPattern = `[^\p{L}\p{M}\p{Nd}\p{Pc}\x{200C}\x{200D}]`

// Split cuts text at the start and the end of every match of pattern and drops the
// empty pieces, so separators are kept as segments and the pieces always
// concatenate back to text. An empty pattern splits into single characters.
func Split(text, pattern string) ([]string, error) {
	if text == "" {
		return []string{}, nil
	}
	if pattern == "" {
		segments := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			segments = append(segments, string(r))
		}
		return segments, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPattern, err)
	}

	var segments []string
	last := 0
	cut := func(at int) {
		if at > last {
			segments = append(segments, text[last:at])
			last = at
		}
	}
	for _, m := range re.FindAllStringIndex(text, -1) {
		cut(m[0])
		cut(m[1])
	}
	cut(len(text))
	return segments, nil
}
