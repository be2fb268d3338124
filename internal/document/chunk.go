package document

// Chunk is a contiguous piece of a document's extracted text.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata travels with a chunk into the cache and into query results.
type ChunkMetadata struct {
	// Source is the identifier of the owning document.
	Source string `json:"source"`
	// ChunkID is the zero-based position of the chunk within its document.
	ChunkID int `json:"chunk_id"`
	// ChunkSize is the chunk length in characters (runes).
	ChunkSize int `json:"chunk_size"`
	// Degraded marks a chunk whose embedding failed and was replaced by a
	// zero vector.
	Degraded      bool   `json:"degraded,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// ScoredChunk is one query result.
type ScoredChunk struct {
	Text string `json:"text"`
	// Score is 1 - Distance. It is not bounded to [0, 1].
	Score    float32       `json:"score"`
	Distance float32       `json:"distance"`
	Metadata ChunkMetadata `json:"metadata"`
	// QueryDegraded is set when the query itself could not be embedded and
	// was searched as a zero vector, so the ranking carries no relevance.
	QueryDegraded bool `json:"query_degraded,omitempty"`
}
