package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an uploaded legal document. Content keeps only a capped
// prefix of the extracted text; retrieval works off the chunks.
type Document struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Filename  string    `gorm:"size:256;not null" json:"filename"`
	Content   string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
