// internal/trivia/fallback_test.go
package trivia

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackTruncates(t *testing.T) {
	qs := Fallback(3)
	assert.Len(t, qs, 3)
	assert.Equal(t, fallbackQuestions[0].Text, qs[0].Text)
}

func TestFallbackCyclesPastTheSet(t *testing.T) {
	n := len(fallbackQuestions) + 4
	qs := Fallback(n)
	assert.Len(t, qs, n)
	assert.Equal(t, fallbackQuestions[0].Text, qs[len(fallbackQuestions)].Text)
}

func TestFallbackDefaultsAmount(t *testing.T) {
	assert.Len(t, Fallback(0), len(fallbackQuestions))
}

func TestFallbackAnswersInRange(t *testing.T) {
	for _, q := range fallbackQuestions {
		assert.GreaterOrEqual(t, q.CorrectIndex, 0, q.Text)
		assert.Less(t, q.CorrectIndex, len(q.Answers), q.Text)
	}
}
