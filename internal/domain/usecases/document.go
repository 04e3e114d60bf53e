package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xcro3dile/policyqa-go/internal/domain/entities"
	"github.com/0xcro3dile/policyqa-go/internal/domain/ports"
)

// ErrSectionNotFound is returned for an unknown section id.
var ErrSectionNotFound = errors.New("section not found")

const (
	sectionPrefix = "SECTION"

	// A subentry lead-in ends at the first colon within this many bytes.
	maxLeadInLength = 120
)

// Outline is the navigable structure of the policy document.
type Outline struct {
	Meta     entities.DocumentMeta
	Sections []entities.Section
}

// SectionView is one rendered section of the policy.
type SectionView struct {
	Section entities.Section
	Blocks  []entities.Block
	// Target is the sub-entry to scroll to, if it belongs to the section.
	Target *entities.TOCItem
}

// DocumentUseCase serves the policy document for browsing.
type DocumentUseCase struct {
	source ports.DocumentSource
}

// NewDocumentUseCase creates a DocumentUseCase.
func NewDocumentUseCase(source ports.DocumentSource) *DocumentUseCase {
	return &DocumentUseCase{source: source}
}

// Outline returns the document metadata and its section tree.
func (uc *DocumentUseCase) Outline(ctx context.Context) (*Outline, error) {
	doc, err := uc.source.LoadDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return &Outline{Meta: doc.Meta, Sections: BuildSections(doc.TOC)}, nil
}

// Section returns the blocks of one section, optionally resolving a
// sub-entry target within it.
func (uc *DocumentUseCase) Section(ctx context.Context, sectionID, targetID string) (*SectionView, error) {
	doc, err := uc.source.LoadDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	rng, ok := BuildSectionRanges(doc.Blocks)[sectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}

	view := &SectionView{Blocks: doc.Blocks[rng.Start:rng.End]}
	for _, s := range BuildSections(doc.TOC) {
		if s.ID != sectionID {
			continue
		}
		view.Section = s
		for i := range s.Items {
			if s.Items[i].ID == targetID {
				view.Target = &s.Items[i]
			}
		}
		break
	}
	if view.Section.ID == "" {
		// Heading present in the body but missing from the TOC.
		head := doc.Blocks[rng.Start]
		view.Section = entities.Section{TOCItem: entities.TOCItem{ID: head.ID, Label: head.Label, Title: head.Title}}
	}
	return view, nil
}

// BuildSections groups TOC items under their "SECTION n" entries. Items that
// precede the first section are dropped.
func BuildSections(toc []entities.TOCItem) []entities.Section {
	var sections []entities.Section
	var current *entities.Section

	for _, item := range toc {
		if isSectionLabel(item.Label) {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &entities.Section{TOCItem: item}
			continue
		}
		if current != nil {
			current.Items = append(current.Items, item)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

// BuildSectionRanges maps each "SECTION n" major heading id to the blocks it
// spans, up to the next such heading.
func BuildSectionRanges(blocks []entities.Block) map[string]entities.SectionRange {
	var starts []int
	for i, b := range blocks {
		if b.Kind == entities.KindMajorHeading && isSectionLabel(b.Label) {
			starts = append(starts, i)
		}
	}

	ranges := make(map[string]entities.SectionRange, len(starts))
	for i, start := range starts {
		end := len(blocks)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		ranges[blocks[start].ID] = entities.SectionRange{Start: start, End: end}
	}
	return ranges
}

// SplitSubentry splits "Term: definition" so the lead-in can be emphasized.
// ok is false when there is no colon in a reasonable lead-in position.
func SplitSubentry(text string) (leadIn, rest string, ok bool) {
	idx := strings.Index(text, ":")
	if idx <= 0 || idx >= maxLeadInLength {
		return "", text, false
	}
	return text[:idx+1], text[idx+1:], true
}

// SectionNumber strips the "SECTION" prefix from a major heading label.
func SectionNumber(label string) string {
	if !isSectionLabel(label) {
		return ""
	}
	return strings.TrimSpace(label[len(sectionPrefix):])
}

func isSectionLabel(label string) bool {
	return len(label) >= len(sectionPrefix) && strings.EqualFold(label[:len(sectionPrefix)], sectionPrefix)
}
