package models

import (
	"time"

	"github.com/google/uuid"
)

// Item sources
const (
	SourceScan   = "scan"
	SourceManual = "manual"
)

// InventoryItem is one normalized food item in a user's pantry
type InventoryItem struct {
	ID             uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	UID            string    `gorm:"size:128;not null;uniqueIndex:idx_inventory_uid_name" json:"-"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	NormalizedName string    `gorm:"size:255;not null;uniqueIndex:idx_inventory_uid_name" json:"-"`
	Category       string    `gorm:"size:64;not null" json:"category"`
	Confidence     float64   `json:"confidence"`
	Source         string    `gorm:"size:16;not null" json:"source"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ScanItem is a food detected in one scan
type ScanItem struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	InventoryID string  `json:"inventoryId,omitempty"`
	Duplicate   bool    `json:"duplicate"`
}

// Scan records one vision pass over a set of uploaded photos
type Scan struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primarykey" json:"id"`
	UID       string     `gorm:"size:128;not null;index" json:"-"`
	ImageURLs StringList `gorm:"type:jsonb" json:"imageUrls"`
	Items     []ScanItem `gorm:"type:jsonb;serializer:json" json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
}
