package rpc

// QueryRequest asks a natural language question about the indexed code
type QueryRequest struct {
	Question  string   `json:"question"`
	TopK      int32    `json:"top_k,omitempty"`
	Repos     []string `json:"repos,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// QueryResponse is one frame of a streamed answer. Chunk carries answer
// text; References are attached to the final frame only.
type QueryResponse struct {
	Chunk      string           `json:"chunk,omitempty"`
	References []*CodeReference `json:"references,omitempty"`
}

// CodeReference points at a code location backing an answer
type CodeReference struct {
	FilePath       string  `json:"file_path"`
	LineStart      int32   `json:"line_start"`
	LineEnd        int32   `json:"line_end"`
	Snippet        string  `json:"snippet,omitempty"`
	RelevanceScore float32 `json:"relevance_score"`
}

// BugSolveRequest describes a bug to analyze against the index
type BugSolveRequest struct {
	Description string `json:"description"`
	TopK        int32  `json:"top_k,omitempty"`
}

// BugSolveResponse is one frame of a streamed bug analysis. Patch and
// AffectedFiles are attached to the final frame only.
type BugSolveResponse struct {
	Chunk         string   `json:"chunk,omitempty"`
	Patch         string   `json:"patch,omitempty"`
	AffectedFiles []string `json:"affected_files,omitempty"`
}

// IndexStatusRequest asks for index statistics
type IndexStatusRequest struct{}

// IndexStatusResponse reports index statistics
type IndexStatusResponse struct {
	TotalFiles   int64  `json:"total_files"`
	IndexedFiles int64  `json:"indexed_files"`
	TotalChunks  int64  `json:"total_chunks"`
	LastUpdated  string `json:"last_updated,omitempty"`
}
