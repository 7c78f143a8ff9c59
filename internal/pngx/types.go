package pngx

// Matching algorithm constants understood by the document service. A tag's
// matching algorithm controls whether it auto-applies to document content.
const (
	MatchNone    = 0
	MatchAny     = 1
	MatchAll     = 2
	MatchLiteral = 3
	MatchRegex   = 4
	MatchFuzzy   = 5
	MatchAuto    = 6
)

// DefaultTagColor is used when a tag is created without an explicit color.
const DefaultTagColor = "#a6cee3"

// Tag is a tag record as stored by the document service.
type Tag struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Color             string `json:"color"`
	MatchingAlgorithm int    `json:"matching_algorithm"`
	Match             string `json:"match,omitempty"`
	IsInboxTag        bool   `json:"is_inbox_tag"`
	Parent            *int   `json:"parent,omitempty"`
}

// TagOptions describes a tag to be created. Name is required. Color defaults
// to DefaultTagColor when empty. The zero MatchingAlgorithm is MatchNone, a
// pure container tag that never auto-applies. Parent is nil for a root tag.
// Match, when set, is the literal auto-match string.
type TagOptions struct {
	Name              string
	Color             string
	MatchingAlgorithm int
	Parent            *int
	Match             string
}

// GetOrCreateOptions controls GetOrCreateTag. Actor switches the lookup to
// annotation-aware identity matching and creates the tag with literal
// self-matching; it must stay false for names where parentheses are literal.
type GetOrCreateOptions struct {
	Color    string
	Actor    bool
	ParentID *int
}

// DocumentType is a document classification record.
type DocumentType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Document is a document record as returned by the service.
type Document struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	Created             string `json:"created,omitempty"`
	DocumentType        *int   `json:"document_type,omitempty"`
	Tags                []int  `json:"tags"`
	ArchiveSerialNumber *int   `json:"archive_serial_number,omitempty"`
}

// UploadRequest describes a document upload. Title, CreatedDate,
// DocumentTypeID and ArchiveSerialNumber are optional (zero values omitted).
type UploadRequest struct {
	FilePath            string
	Title               string
	CreatedDate         string
	TagIDs              []int
	DocumentTypeID      int
	ArchiveSerialNumber int
}

// UploadReceipt tracks an accepted upload. The service processes uploads
// asynchronously, so the receipt carries the search term used to locate the
// document once it has been consumed.
type UploadReceipt struct {
	TaskID     string
	SearchTerm string
	Title      string
}

// PermissionStats aggregates the outcome of a post-upload permission pass.
type PermissionStats struct {
	Updated  int
	NotFound int
	Failed   int
}

type tagPage struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []Tag   `json:"results"`
}

type documentTypePage struct {
	Count   int            `json:"count"`
	Next    *string        `json:"next"`
	Results []DocumentType `json:"results"`
}

// DocumentPage is one page of a document search result.
type DocumentPage struct {
	Count   int        `json:"count"`
	Next    *string    `json:"next"`
	Results []Document `json:"results"`
}
