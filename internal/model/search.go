package model

type SearchFilter struct {
	Topic   string
	YearMin *int
	YearMax *int
}

type SearchRequest struct {
	Query  string
	Filter SearchFilter
	Limit  int
}

// SearchHit is a raw row of the ranked query. Distance is the cosine
// distance between the query and the chunk embedding.
type SearchHit struct {
	ChunkID    int64
	MaterialID int64
	Title      string
	PageNumber int
	ChunkText  string
	Distance   float64
}

type SearchResult struct {
	ChunkID    int64   `json:"chunk_id"`
	MaterialID int64   `json:"material_id"`
	Title      string  `json:"title"`
	PageNumber int     `json:"page_number"`
	ChunkText  string  `json:"chunk_text"`
	Similarity float64 `json:"similarity"`
}
