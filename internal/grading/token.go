package grading

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind tags how an answer token (or a correctness key) is encoded.
type Kind int

const (
	KindText Kind = iota
	KindOrdinal
	KindLetter
)

func (k Kind) String() string {
	switch k {
	case KindOrdinal:
		return "ordinal"
	case KindLetter:
		return "letter"
	default:
		return "text"
	}
}

// DefaultLetterSpan covers A..E; questions with more choices widen it.
const (
	DefaultLetterSpan = 5
	maxLetterSpan     = 26
)

var ordinalPattern = regexp.MustCompile(`^[0-9]+$`)

// Token is the classified form of a raw answer or key. Index is zero-based and
// only meaningful for KindOrdinal and KindLetter; it is -1 for KindText.
type Token struct {
	Kind  Kind
	Index int
	Text  string
}

// LetterSpan returns how many letters (from A) count as choice letters for a
// question with n choices.
func LetterSpan(n int) int {
	span := DefaultLetterSpan
	if n > span {
		span = n
	}
	if span > maxLetterSpan {
		span = maxLetterSpan
	}
	return span
}

// Classify trims raw and tags it as an ordinal ("1", "12"), a letter ("b") or
// free text. Digits are tested before letters. Any run of digits that parses to
// n >= 1 is an ordinal; "0" and values overflowing int stay text.
func Classify(raw string, letterSpan int) Token {
	text := strings.TrimSpace(raw)
	tok := Token{Kind: KindText, Index: -1, Text: text}

	if ordinalPattern.MatchString(text) {
		if n, err := strconv.Atoi(text); err == nil && n >= 1 {
			tok.Kind = KindOrdinal
			tok.Index = n - 1
			return tok
		}
	}

	if letterSpan <= 0 {
		letterSpan = DefaultLetterSpan
	}
	upper := strings.ToUpper(text)
	if len(upper) == 1 && upper[0] >= 'A' && int(upper[0]-'A') < letterSpan {
		tok.Kind = KindLetter
		tok.Index = int(upper[0] - 'A')
	}
	return tok
}

// resolves reports whether the token points at one of n choices.
func (t Token) resolves(n int) bool {
	return t.Kind != KindText && t.Index >= 0 && t.Index < n
}
