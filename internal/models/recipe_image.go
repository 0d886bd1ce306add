package models

import "time"

// RecipeImage is a cache entry for a generated meal image, keyed by a content hash.
// LeaseID/LeaseExpiresAt mark an in-flight generation; Version is bumped on every
// lease transition and guards the compare-and-swap.
type RecipeImage struct {
	ID             string     `gorm:"primaryKey;size:24" json:"recipeImageId"`
	Signature      string     `gorm:"type:text;not null" json:"signature"`
	Title          string     `gorm:"size:255" json:"title"`
	Ingredients    StringList `gorm:"type:jsonb" json:"ingredients"`
	StoragePath    string     `gorm:"size:255" json:"-"`
	DownloadURL    string     `gorm:"type:text" json:"downloadUrl,omitempty"`
	LeaseID        *string    `gorm:"size:36" json:"-"`
	LeaseExpiresAt *time.Time `json:"-"`
	LastError      string     `gorm:"type:text" json:"lastError,omitempty"`
	Version        int64      `gorm:"not null" json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Ready reports whether the image has been generated and stored
func (r *RecipeImage) Ready() bool {
	return r.DownloadURL != ""
}

// LeaseHeld reports whether another request holds an unexpired lease at now
func (r *RecipeImage) LeaseHeld(now time.Time) bool {
	return r.LeaseID != nil && *r.LeaseID != "" &&
		r.LeaseExpiresAt != nil && now.Before(*r.LeaseExpiresAt)
}
