package model

type TextChunk struct {
	ChunkID    int64  `json:"chunk_id"`
	FileID     int64  `json:"file_id"`
	PageNumber int    `json:"page_number"`
	ChunkText  string `json:"chunk_text"`
}

// PendingChunk is a chunk and its embedding waiting to be written together.
type PendingChunk struct {
	PageNumber int
	Text       string
	Embedding  []float32
}

type IngestResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Chunks    int `json:"chunks"`
}
