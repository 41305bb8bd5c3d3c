package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSentimentJSON(t *testing.T) {
	testCases := []struct {
		name          string
		raw           string
		wantScore     float64
		wantMagnitude float64
	}{
		{"plain", `{"score": 0.6, "magnitude": 1.2}`, 0.6, 1.2},
		{"code fence", "```json\n{\"score\": -0.4, \"magnitude\": 0.8}\n```", -0.4, 0.8},
		{"surrounding prose", `Sure! {"score": 0.1, "magnitude": 0.2} Hope that helps.`, 0.1, 0.2},
		{"clamped", `{"score": 3, "magnitude": -1}`, 1, 0},
		{"missing magnitude", `{"score": -0.9}`, -0.9, 0},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := parseSentimentJSON(testCase.raw, "openai")
			require.NoError(t, err)
			assert.InDelta(t, testCase.wantScore, result.Score, 1e-9)
			assert.InDelta(t, testCase.wantMagnitude, result.Magnitude, 1e-9)
			assert.Equal(t, "openai", result.Provider)
		})
	}
}

func TestParseSentimentJSONRejectsGarbage(t *testing.T) {
	_, err := parseSentimentJSON("I cannot rate this post.", "gemini")
	assert.Error(t, err)

	_, err = parseSentimentJSON(`{"magnitude": 0.5}`, "gemini")
	assert.Error(t, err)
}
