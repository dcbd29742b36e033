package model

import "time"

// LLMCall is an audit record of one upstream LLM invocation. Records are
// published to the audit queue and persisted by the worker; request
// handling never writes them synchronously.
type LLMCall struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TenantID   string    `gorm:"size:64;index" json:"tenant_id"`
	Endpoint   string    `gorm:"size:32;not null;index" json:"endpoint"`
	Provider   string    `gorm:"size:32;not null" json:"provider"`
	Model      string    `gorm:"size:128;not null" json:"model"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
