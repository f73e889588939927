package moderation

import (
	"log/slog"
	"unicode"

	"duo-chat/errors"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator decides whether a message may enter a session. Matching runs on
// a normalized view of the text so trivial evasions (leet speak, spacing,
// punctuation) do not slip past the dictionary.
type Moderator struct {
	matcher *goahocorasick.Machine
	log     *slog.Logger
}

// NewModerator builds the Aho-Corasick automaton over the normalized banned
// word list.
func NewModerator(bannedWords []string, log *slog.Logger) (Moderator, error) {
	if len(bannedWords) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}

	patterns := make([][]rune, len(bannedWords))
	for i, word := range bannedWords {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, log: log}, nil
}

// Allowed reports whether the text is free of banned patterns. The search
// stops at the first hit; rejected content is reported to the sender and
// never stored.
func (m *Moderator) Allowed(text string) bool {
	normalized := normalizeRunes([]rune(text))
	if len(normalized) == 0 {
		return true
	}
	hits := m.matcher.MultiPatternSearch(normalized, true)
	if len(hits) > 0 {
		m.log.Debug("message blocked by moderation")
		return false
	}
	return true
}

// normalizeRunes applies simplification and noise removal to a slice of runes.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters that should be ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
