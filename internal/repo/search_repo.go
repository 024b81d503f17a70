package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/livinglib/internal/model"
	"github.com/xxxsen/livinglib/internal/pkg/dbutil"
)

type SearchRepo struct {
	db *sql.DB
}

func NewSearchRepo(db *sql.DB) *SearchRepo {
	return &SearchRepo{db: db}
}

// Search ranks chunks of primary files by cosine distance to query.
func (r *SearchRepo) Search(ctx context.Context, query []float32, filter model.SearchFilter, limit int) ([]model.SearchHit, error) {
	sqlStr, args := buildSearchQuery(pgvector.NewVector(query), filter, limit)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []model.SearchHit
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.ChunkID, &h.MaterialID, &h.Title, &h.PageNumber, &h.ChunkText, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// buildSearchQuery adds one ANDed predicate per present filter.
func buildSearchQuery(vec pgvector.Vector, filter model.SearchFilter, limit int) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{vec}
	sb.WriteString(`SELECT tc.chunk_id, m.material_id, m.title, tc.page_number, tc.chunk_text,
	ce.embedding <=> ? AS distance
FROM chunk_embedding ce
JOIN text_chunk tc ON tc.chunk_id = ce.chunk_id
JOIN file_asset fa ON fa.file_id = tc.file_id AND fa.is_primary
JOIN material m ON m.material_id = fa.material_id`)

	var preds []string
	if filter.Topic != "" {
		preds = append(preds, `EXISTS (SELECT 1 FROM material_topic mt JOIN topic t ON t.topic_id = mt.topic_id
	WHERE mt.material_id = m.material_id AND t.topic_name = ?)`)
		args = append(args, filter.Topic)
	}
	if filter.YearMin != nil {
		preds = append(preds, "m.year >= ?")
		args = append(args, *filter.YearMin)
	}
	if filter.YearMax != nil {
		preds = append(preds, "m.year <= ?")
		args = append(args, *filter.YearMax)
	}
	if len(preds) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(preds, "\n\tAND "))
	}
	sb.WriteString("\nORDER BY ce.embedding <=> ?\nLIMIT ?")
	args = append(args, vec, limit)
	return dbutil.Finalize(sb.String(), args)
}
