package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Yerassyl-hub/backofadilai/internal/pkg/similarity"
)

// Chunk is one paragraph-aligned segment of a document with its
// embedding. Chunks are append-only: created at ingestion, deleted with
// their document, never mutated. Embedding is stored as a JSON array of
// float32; legacy rows may carry the old {"v":[...]} wrapper, which
// similarity.DecodeVector still understands.
type Chunk struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentID string    `gorm:"size:36;not null;index" json:"document_id"`
	TenantID   string    `gorm:"size:64;index" json:"tenant_id"`
	Ordinal    int       `gorm:"not null" json:"ordinal"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Embedding  string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *Chunk) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// EmbeddingVector returns the decoded embedding; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	return similarity.DecodeVector([]byte(c.Embedding))
}

// SetEmbedding stores the embedding as a flat JSON array.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
