// Package grading turns a raw answer token and a stored correctness key into a
// verdict. Keys arrive in three undeclared encodings (1-based ordinal, letter,
// literal text); both sides go through the same Classify function.
package grading

import "strings"

// Result is the outcome of grading one answer.
type Result struct {
	IsCorrect           bool   `json:"is_correct"`
	CanonicalUserChoice string `json:"canonical_user_choice"`
	CanonicalAnswerKey  string `json:"canonical_answer_key"`
	// ResolvedChoiceIndex is nil when the answer did not point at a choice.
	ResolvedChoiceIndex *int `json:"resolved_choice_index,omitempty"`

	UserKind Kind `json:"-"`
	KeyKind  Kind `json:"-"`
}

// Grade never panics. An index outside choices is treated as unresolved and the
// answer is compared as text.
func Grade(choices []string, key, raw string) Result {
	span := LetterSpan(len(choices))
	user := Classify(raw, span)
	answer := Classify(key, span)

	res := Result{
		CanonicalUserChoice: user.Text,
		CanonicalAnswerKey:  answer.Text,
		UserKind:            user.Kind,
		KeyKind:             answer.Kind,
	}

	userResolved := user.resolves(len(choices))
	if userResolved {
		idx := user.Index
		res.ResolvedChoiceIndex = &idx
		res.CanonicalUserChoice = strings.TrimSpace(choices[idx])
	}

	if answer.resolves(len(choices)) {
		res.CanonicalAnswerKey = strings.TrimSpace(choices[answer.Index])
	}

	switch {
	case answer.Kind == KindOrdinal && userResolved:
		res.IsCorrect = answer.Index == user.Index
	case answer.Kind == KindLetter && userResolved:
		res.IsCorrect = answer.Index == user.Index
	default:
		res.IsCorrect = textMatch(res.CanonicalUserChoice, user.Text, answer.Text)
	}
	return res
}

// textMatch is the free-text fallback, comparing against the key as written.
// Absent inputs are empty strings, so an empty answer matches an empty key.
func textMatch(userChoice, userRaw, key string) bool {
	return strings.EqualFold(userChoice, key) || strings.EqualFold(userRaw, key)
}
