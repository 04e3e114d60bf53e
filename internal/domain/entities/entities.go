// Package entities contains core business entities.
// These are pure domain objects with no external dependencies.
package entities

// Chunk is a retrievable unit of policy text.
// Chunks are loaded read-only from the chunks.json asset and never mutated.
type Chunk struct {
	ID      string `json:"id,omitempty"`
	Section string `json:"section,omitempty"` // Parent section number, e.g. "4"
	Label   string `json:"label,omitempty"`   // Short identifier, e.g. "4.5"
	Title   string `json:"title,omitempty"`
	Text    string `json:"text"`
}

// ChunkSet is the on-disk shape of chunks.json.
type ChunkSet struct {
	Chunks []Chunk `json:"chunks"`
}

// ScoredChunk pairs a chunk with its relevance score for one ranking pass.
type ScoredChunk struct {
	Chunk Chunk
	Score int
}

// Block kinds found in policy.json.
const (
	KindMajorHeading = "major_heading"
	KindHeading      = "heading"
	KindSubheading   = "subheading"
	KindSubentry     = "subentry"
	KindListItem     = "list_item"
	KindParagraph    = "paragraph"
)

// DocumentMeta holds display metadata for the policy document.
type DocumentMeta struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
}

// TOCItem is one entry of the table of contents.
type TOCItem struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Title string `json:"title,omitempty"`
}

// Block is one renderable element of the policy body.
type Block struct {
	ID    string `json:"id,omitempty"`
	Kind  string `json:"kind"`
	Level int    `json:"level,omitempty"`
	Label string `json:"label,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// IsHeading reports whether the block renders as a heading.
func (b Block) IsHeading() bool {
	return b.Kind == KindMajorHeading || b.Kind == KindHeading || b.Kind == KindSubheading
}

// PolicyDocument is the on-disk shape of policy.json.
type PolicyDocument struct {
	Meta   DocumentMeta `json:"meta"`
	TOC    []TOCItem    `json:"toc"`
	Blocks []Block      `json:"blocks"`
}

// Section is a top-level "SECTION n" entry with its nested TOC items.
type Section struct {
	TOCItem
	Items []TOCItem
}

// SectionRange is the half-open block range [Start, End) of a section.
type SectionRange struct {
	Start int
	End   int
}

// AskRequest is a question posted to the assistant.
type AskRequest struct {
	Question     string `json:"question"`
	PrototypeKey string `json:"prototypeKey"`
}

// AskResponse is the assistant's answer plus daily usage info.
type AskResponse struct {
	Answer    string  `json:"answer"`
	Limit     int     `json:"limit"`
	Remaining int     `json:"remaining"`
	Sources   []Chunk `json:"-"`
}
