package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Yerassyl-hub/backofadilai/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ListByDocumentID returns the document's chunks. The store gives no
// ordering guarantee; the ranker orders independently. Chunk writes and
// deletes go through DocumentRepository transactions, so this repository
// only reads.
func (r *ChunkRepository) ListByDocumentID(documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("document_id = ?", documentID).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}
