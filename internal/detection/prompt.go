package detection

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are an expert at detecting fake restaurant reviews. Analyze the following review and determine if it's genuine or fake.

Review Details:
- Text: "%s"
- Rating: %d/5 stars
- Language: %s
- Author: %s
- Date: %s
- Restaurant: %s

Analyze for these fake review indicators:
1. **Generic Language**: Overly generic praise/complaints
2. **Excessive Emotion**: Unrealistic superlatives or extreme negativity
3. **Repetitive Patterns**: Similar phrasing to common fake reviews
4. **Inconsistent Details**: Contradictory information
5. **Timing Patterns**: Suspicious posting timing
6. **Language Quality**: Unnatural language flow
7. **Specificity**: Lack of specific details about food/service

Provide your analysis in this EXACT JSON format:
{
  "classification": "genuine/suspicious/fake",
  "confidence": 0.0-1.0,
  "reasons": ["reason1", "reason2"],
  "sentiment": "positive/negative/neutral",
  "languageConfidence": 0.0-1.0,
  "explanation": "Brief explanation of your decision"
}

Classification Guidelines:
- "genuine": High confidence (0.8+) that the review is authentic
- "suspicious": Medium confidence (0.5-0.8) or mixed signals that require caution
- "fake": High confidence (0.8+) that the review is fabricated

Be thorough but concise. Consider cultural context for Malaysian/English reviews.`

// BuildPrompt renders the classification prompt for one review. The review
// is embedded as given.
func BuildPrompt(review ReviewForAnalysis) string {
	restaurant := review.RestaurantName
	if strings.TrimSpace(restaurant) == "" {
		restaurant = "Unknown"
	}
	return fmt.Sprintf(promptTemplate,
		review.ReviewText,
		review.Rating,
		review.Language,
		review.AuthorName,
		review.ReviewDate,
		restaurant,
	)
}
