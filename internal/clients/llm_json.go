package clients

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spacesedan/bluesense/internal/models"
)

const SENTIMENT_PROMPT = `You are a sentiment analysis service.
Rate the overall sentiment of the social media post supplied by the user.
Respond with a single JSON object and nothing else:
{"score": <number from -1.0 (very negative) to 1.0 (very positive)>,
 "magnitude": <number >= 0.0, the overall strength of emotion regardless of direction>}
Neutral or mixed posts have a score near 0.0. Long emotional posts have a higher magnitude.`

// cleanLLMResponse strips markdown code fences and typographic quotes that
// chat models sometimes wrap JSON in.
func cleanLLMResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		lines := strings.Split(response, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		response = strings.Join(lines[1:endIdx], "\n")
	}

	response = strings.ReplaceAll(response, "“", `"`)
	response = strings.ReplaceAll(response, "”", `"`)

	return strings.TrimSpace(response)
}

// parseSentimentJSON decodes an LLM reply into a clamped SentimentResult.
func parseSentimentJSON(raw, provider string) (models.SentimentResult, error) {
	cleaned := cleanLLMResponse(raw)
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}

	var resp models.LLMSentimentResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return models.SentimentResult{}, fmt.Errorf("response is not JSON: %w (%s)", err, getPreview(raw))
	}
	if resp.Score == nil {
		return models.SentimentResult{}, fmt.Errorf("response has no score: %s", getPreview(raw))
	}

	magnitude := 0.0
	if resp.Magnitude != nil {
		magnitude = *resp.Magnitude
	}
	return models.NewSentimentResult(*resp.Score, magnitude, provider), nil
}
