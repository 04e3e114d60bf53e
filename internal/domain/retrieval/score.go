package retrieval

import (
	"strings"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

// Field weights added per query token found in a chunk field.
const (
	TextWeight  = 2
	TitleWeight = 3
	LabelWeight = 2
)

// Score sums the field weights of every query token that occurs inside the
// chunk's text, title or label. Matching is case-insensitive substring
// containment, so "leave" hits "leaves" and a label token hits any label that
// contains it.
func Score(chunk entities.Chunk, tokens TokenSet) int {
	text := strings.ToLower(chunk.Text)
	title := strings.ToLower(chunk.Title)
	label := strings.ToLower(chunk.Label)

	score := 0
	for t := range tokens {
		if strings.Contains(text, t) {
			score += TextWeight
		}
		if strings.Contains(title, t) {
			score += TitleWeight
		}
		if strings.Contains(label, t) {
			score += LabelWeight
		}
	}
	return score
}
