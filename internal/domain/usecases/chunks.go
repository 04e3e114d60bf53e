package usecases

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
)

// ChunkUseCase derives retrievable chunks from the structured policy document.
type ChunkUseCase struct{}

// NewChunkUseCase creates a ChunkUseCase.
func NewChunkUseCase() *ChunkUseCase {
	return &ChunkUseCase{}
}

// Build walks the document body and emits one chunk per heading or
// subheading. Body blocks that follow are appended to the open chunk as
// lines; major headings only set the section number for what follows.
// Chunks without body text are dropped.
func (uc *ChunkUseCase) Build(doc *entities.PolicyDocument) []entities.Chunk {
	if doc == nil {
		return nil
	}

	var (
		chunks  []entities.Chunk
		current *entities.Chunk
		lines   []string
		section string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(lines, "\n"))
		if current.Text != "" {
			current.ID = generateChunkID(current.Section, current.Label, len(chunks))
			chunks = append(chunks, *current)
		}
		current, lines = nil, nil
	}

	for _, b := range doc.Blocks {
		switch b.Kind {
		case entities.KindMajorHeading:
			flush()
			if n := SectionNumber(b.Label); n != "" {
				section = n
			}
		case entities.KindHeading, entities.KindSubheading:
			flush()
			current = &entities.Chunk{Section: section, Label: b.Label, Title: b.Title}
		default:
			if current == nil || strings.TrimSpace(b.Text) == "" {
				continue
			}
			line := b.Text
			if b.Kind == entities.KindListItem {
				bullet := b.Label
				if bullet == "" {
					bullet = "•"
				}
				line = bullet + " " + line
			} else if b.Kind == entities.KindSubentry && b.Label != "" {
				line = b.Label + " " + line
			}
			lines = append(lines, line)
		}
	}
	flush()

	return chunks
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(section, label string, index int) string {
	hash := sha256.Sum256([]byte(section + "/" + label + "/" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}
