// Package model holds the structural types shared across extraction,
// chunking, storage, retrieval, and chat: the document block produced by
// extraction, the chunk produced by the chunker, and the location
// descriptor that lets a citation deep-link back into the source file.
package model

// LocationType names the structural family a Location belongs to.
type LocationType string

const (
	LocationPDF   LocationType = "pdf"
	LocationDoc   LocationType = "doc"
	LocationSheet LocationType = "sheet"
	LocationText  LocationType = "text"
)

// Location is a structured pointer back into the source file: a page
// number for PDFs, a heading path + paragraph index for word-processor
// documents, or a sheet name + row range for spreadsheets.
type Location struct {
	Type        LocationType `json:"type"`
	Page        int          `json:"page,omitempty"`
	BlockIndex  int          `json:"block_index,omitempty"`
	HeadingPath string       `json:"heading_path,omitempty"`
	ParaIndex   int          `json:"para_index,omitempty"`
	SheetName   string       `json:"sheet_name,omitempty"`
	RowRange    string       `json:"row_range,omitempty"`
}

// Block is one structural unit of extracted text: a PDF page, a
// paragraph, an email body, or a spreadsheet row-group.
type Block struct {
	Text         string
	Location     Location
	HeadingLevel int // 0 = no heading context, 1 = top-level, 2 = subheading, ...
}

// Chunk is a contiguous, bounded-length fragment of a file's text ready
// for embedding and storage.
type Chunk struct {
	Text       string
	Location   Location
	ChunkIndex int
}
