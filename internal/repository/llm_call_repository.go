package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Yerassyl-hub/backofadilai/internal/model"
)

type LLMCallRepository struct {
	db *gorm.DB
}

func NewLLMCallRepository(db *gorm.DB) *LLMCallRepository {
	return &LLMCallRepository{db: db}
}

func (r *LLMCallRepository) Create(call *model.LLMCall) error {
	if err := r.db.Create(call).Error; err != nil {
		return fmt.Errorf("create llm call record failed: %w", err)
	}
	return nil
}

func (r *LLMCallRepository) ListByTenant(tenantID string, limit int) ([]model.LLMCall, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var calls []model.LLMCall
	if err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Limit(limit).Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("list llm calls failed: %w", err)
	}
	return calls, nil
}
