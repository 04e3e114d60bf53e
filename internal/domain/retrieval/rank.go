package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

// MaxExcerpts caps how many chunks reach the prompt context.
const MaxExcerpts = 6

// NoExcerpts is the context used when no chunk is selected.
const NoExcerpts = "(No excerpts available.)"

// RankScored scores every chunk against the question and returns at most
// MaxExcerpts of them, highest score first. Chunks with equal scores keep
// their input order. Zero-scoring chunks are not filtered out.
func RankScored(chunks []entities.Chunk, question string) []entities.ScoredChunk {
	tokens := Tokenize(question)

	scored := make([]entities.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = entities.ScoredChunk{Chunk: c, Score: Score(c, tokens)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > MaxExcerpts {
		scored = scored[:MaxExcerpts]
	}
	return scored
}

// Rank is RankScored without the scores.
func Rank(chunks []entities.Chunk, question string) []entities.Chunk {
	scored := RankScored(chunks, question)
	ranked := make([]entities.Chunk, len(scored))
	for i, s := range scored {
		ranked[i] = s.Chunk
	}
	return ranked
}

// AssembleContext renders ranked chunks as numbered excerpts:
//
//	1) 4 — 4.5 Sick Leave
//	Employees accrue one sick day per month.
//
// The section prefix is omitted when the chunk has no section.
func AssembleContext(ranked []entities.Chunk) string {
	if len(ranked) == 0 {
		return NoExcerpts
	}

	entries := make([]string, len(ranked))
	for i, c := range ranked {
		entries[i] = header(i+1, c) + "\n" + c.Text
	}
	return strings.Join(entries, "\n\n")
}

func header(pos int, c entities.Chunk) string {
	section := ""
	if c.Section != "" {
		section = c.Section + " — "
	}
	return fmt.Sprintf("%d) %s%s %s", pos, section, c.Label, c.Title)
}
