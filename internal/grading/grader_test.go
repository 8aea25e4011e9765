package grading

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var animals = []string{"cat", "dog", "bird"}

func TestGrade(t *testing.T) {
	cases := []struct {
		name       string
		key        string
		raw        string
		wantOK     bool
		wantChoice string
		wantKey    string
	}{
		{name: "ordinal key, ordinal answer", key: "2", raw: "2", wantOK: true, wantChoice: "dog", wantKey: "dog"},
		{name: "letter key, ordinal answer", key: "B", raw: "2", wantOK: true, wantChoice: "dog", wantKey: "dog"},
		{name: "text key, text answer", key: "dog", raw: "dog", wantOK: true, wantChoice: "dog", wantKey: "dog"},
		{name: "ordinal key, letter answer", key: "3", raw: "c", wantOK: true, wantChoice: "bird", wantKey: "bird"},
		{name: "letter key lowercase", key: "a", raw: " A ", wantOK: true, wantChoice: "cat", wantKey: "cat"},
		{name: "text key, ordinal answer", key: "Bird", raw: "3", wantOK: true, wantChoice: "bird", wantKey: "Bird"},
		{name: "ordinal key, typed choice text", key: "2", raw: "DOG", wantOK: false, wantChoice: "DOG", wantKey: "dog"},
		{name: "letter key, typed choice text", key: "B", raw: "dog", wantOK: false, wantChoice: "dog", wantKey: "dog"},
		{name: "wrong ordinal", key: "2", raw: "1", wantOK: false, wantChoice: "cat", wantKey: "dog"},
		{name: "wrong letter", key: "B", raw: "a", wantOK: false, wantChoice: "cat", wantKey: "dog"},
		{name: "wrong text", key: "dog", raw: "fish", wantOK: false, wantChoice: "fish", wantKey: "dog"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Grade(animals, tc.key, tc.raw)
			assert.Equal(t, tc.wantOK, res.IsCorrect)
			assert.Equal(t, tc.wantChoice, res.CanonicalUserChoice)
			assert.Equal(t, tc.wantKey, res.CanonicalAnswerKey)
		})
	}
}

func TestGradeResolvesChoiceIndex(t *testing.T) {
	res := Grade(animals, "2", "2")
	require.NotNil(t, res.ResolvedChoiceIndex)
	assert.Equal(t, 1, *res.ResolvedChoiceIndex)
	assert.Equal(t, KindOrdinal, res.UserKind)
	assert.Equal(t, KindOrdinal, res.KeyKind)
}

func TestAnyEncodingCombinationIsCorrect(t *testing.T) {
	for n := 1; n <= 8; n++ {
		choices := make([]string, n)
		for i := range choices {
			choices[i] = fmt.Sprintf("choice %d", i)
		}
		for i := 0; i < n; i++ {
			ordinal := strconv.Itoa(i + 1)
			letter := string(rune('A' + i))
			encodings := []string{ordinal, letter, strings.ToLower(letter)}
			for _, key := range encodings {
				for _, raw := range encodings {
					res := Grade(choices, key, raw)
					assert.Truef(t, res.IsCorrect, "n=%d key=%q raw=%q", n, key, raw)
					assert.Equal(t, choices[i], res.CanonicalUserChoice)
				}
			}
		}
	}
}

func TestTextFallbackIsCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"Paris", "paris", "  PARIS  "} {
		res := Grade(nil, "paris", raw)
		assert.Truef(t, res.IsCorrect, "raw=%q", raw)
		assert.Nil(t, res.ResolvedChoiceIndex)
		assert.Equal(t, KindText, res.UserKind)
	}
	assert.False(t, Grade(nil, "paris", "london").IsCorrect)
}

func TestOutOfRangeIndexFallsBackToText(t *testing.T) {
	res := Grade(animals, "dog", "5")
	assert.False(t, res.IsCorrect)
	assert.Nil(t, res.ResolvedChoiceIndex)
	assert.Equal(t, "5", res.CanonicalUserChoice)

	// Free-text numeric question: "4" is an ordinal shape but there are no choices.
	res = Grade(nil, "4", "4")
	assert.True(t, res.IsCorrect)
	assert.Nil(t, res.ResolvedChoiceIndex)
}

func TestMultiDigitOrdinal(t *testing.T) {
	choices := make([]string, 12)
	for i := range choices {
		choices[i] = fmt.Sprintf("option-%d", i+1)
	}
	res := Grade(choices, "12", "12")
	require.NotNil(t, res.ResolvedChoiceIndex)
	assert.Equal(t, 11, *res.ResolvedChoiceIndex)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "option-12", res.CanonicalUserChoice)

	// Twelve choices widen the letter range to L.
	assert.True(t, Grade(choices, "L", "12").IsCorrect)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		raw       string
		span      int
		wantKind  Kind
		wantIndex int
	}{
		{"1", 5, KindOrdinal, 0},
		{" 12 ", 5, KindOrdinal, 11},
		{"0", 5, KindText, -1},
		{"007", 5, KindOrdinal, 6},
		{"99999999999999999999999", 5, KindText, -1},
		{"e", 5, KindLetter, 4},
		{"F", 5, KindText, -1},
		{"F", 6, KindLetter, 5},
		{"AB", 5, KindText, -1},
		{"-1", 5, KindText, -1},
		{"", 5, KindText, -1},
		{"é", 5, KindText, -1},
		{"c", 0, KindLetter, 2},
	}
	for _, tc := range cases {
		tok := Classify(tc.raw, tc.span)
		assert.Equalf(t, tc.wantKind, tok.Kind, "raw=%q", tc.raw)
		assert.Equalf(t, tc.wantIndex, tok.Index, "raw=%q", tc.raw)
	}
}

func TestEmptyInputsCompareAsEmptyText(t *testing.T) {
	assert.True(t, Grade(nil, "", "").IsCorrect)
	assert.True(t, Grade(animals, "", "  ").IsCorrect)
	assert.False(t, Grade(animals, "", "1").IsCorrect)
	assert.False(t, Grade(animals, "2", "").IsCorrect)
}

func TestLetterSpan(t *testing.T) {
	assert.Equal(t, 5, LetterSpan(0))
	assert.Equal(t, 5, LetterSpan(3))
	assert.Equal(t, 7, LetterSpan(7))
	assert.Equal(t, 26, LetterSpan(40))
}

func FuzzGrade(f *testing.F) {
	f.Add("2", "2")
	f.Add("B", "b")
	f.Add("dog", " DOG ")
	f.Add("", "999999999999999999999")
	f.Add("\x00", "Z")
	f.Fuzz(func(t *testing.T, key, raw string) {
		res := Grade(animals, key, raw)
		if res.ResolvedChoiceIndex != nil {
			idx := *res.ResolvedChoiceIndex
			if idx < 0 || idx >= len(animals) {
				t.Fatalf("resolved index out of range: %d", idx)
			}
		}
	})
}
