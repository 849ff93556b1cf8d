package models

import "time"

// Blob is one named value of the key-value store.
type Blob struct {
	Key       string    `json:"key" gorm:"column:blob_key;type:varchar(255);primaryKey"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}
