package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/model"
)

func TestParseQuestions(t *testing.T) {
	lc := config.Default().Learning
	data := []byte(`
questions:
  - id: voc-1
    topic: Vocabulary
    level: 2
    prompt: "Pick the synonym of 'big'."
    choices: [small, large, thin]
    answer: "2"
    explanation: Large means big.
  - id: voc-2
    topic: vocabulary
    level: 3
    prompt: "Opposite of 'hot'?"
    answer: cold
    active: false
`)
	qs, err := parseQuestions(data, lc)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, model.TopicVocabulary, qs[0].Topic)
	assert.Equal(t, []string{"small", "large", "thin"}, []string(qs[0].Choices))
	assert.Equal(t, "2", qs[0].AnswerKey)
	assert.True(t, qs[0].Active)
	assert.False(t, qs[1].Active)
	assert.Empty(t, qs[1].Choices)
}

func TestParseQuestionsRejects(t *testing.T) {
	lc := config.Default().Learning
	cases := map[string]string{
		"missing id":   "questions:\n  - topic: grammar\n    level: 1\n    prompt: p\n    answer: a\n",
		"bad topic":    "questions:\n  - id: x\n    topic: astronomy\n    level: 1\n    prompt: p\n    answer: a\n",
		"level range":  "questions:\n  - id: x\n    topic: grammar\n    level: 11\n    prompt: p\n    answer: a\n",
		"no answer":    "questions:\n  - id: x\n    topic: grammar\n    level: 1\n    prompt: p\n",
		"duplicate id": "questions:\n  - {id: x, topic: grammar, level: 1, prompt: p, answer: a}\n  - {id: x, topic: grammar, level: 2, prompt: q, answer: b}\n",
		"not yaml":     "questions: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseQuestions([]byte(doc), lc)
			assert.Error(t, err)
		})
	}
}

func TestSampleQuestionBank(t *testing.T) {
	data, err := os.ReadFile("../../data/questions.yaml")
	require.NoError(t, err)
	qs, err := parseQuestions(data, config.Default().Learning)
	require.NoError(t, err)

	pools := map[model.Topic]map[int]int{}
	for _, q := range qs {
		if pools[q.Topic] == nil {
			pools[q.Topic] = map[int]int{}
		}
		pools[q.Topic][q.Level]++
	}
	for _, topic := range model.Topics {
		for level := 1; level <= 10; level++ {
			assert.Positive(t, pools[topic][level], "%s level %d has no questions", topic, level)
		}
	}
}
