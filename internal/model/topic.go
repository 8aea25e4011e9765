package model

import (
	"strings"

	"quizcoach-backend/internal/apperr"
)

// Topic is one of a closed set of question categories.
type Topic string

const (
	TopicVocabulary Topic = "vocabulary"
	TopicGrammar    Topic = "grammar"
	TopicReading    Topic = "reading"
	TopicListening  Topic = "listening"
	TopicCulture    Topic = "culture"
)

var Topics = []Topic{TopicVocabulary, TopicGrammar, TopicReading, TopicListening, TopicCulture}

func (t Topic) Valid() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

func ParseTopic(raw string) (Topic, error) {
	t := Topic(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", apperr.Validation("unknown topic %q", raw)
	}
	return t, nil
}

// ParseTopicOr returns fallback for an empty input.
func ParseTopicOr(raw string, fallback Topic) (Topic, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return ParseTopic(raw)
}
