package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

const maxScanImages = 10

const visionPrompt = `List every distinct food item visible in these fridge or pantry photos.
Use short generic grocery names (for example "milk", "cheddar cheese", "bell pepper"), singular where natural.
Respond with a JSON object: {"foods":[{"name":"","confidence":0.0}]} where confidence is between 0 and 1.`

// ScanResult is the outcome of one scan
type ScanResult struct {
	ScanID string            `json:"scanId"`
	Foods  []models.ScanItem `json:"foods"`
}

type detectedFood struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ScanService extracts foods from photos and keeps the user's inventory
type ScanService struct {
	db          *gorm.DB
	chat        ChatClient
	model       string
	categorizer ICategorizer
	log         *logrus.Entry
}

// NewScanService creates a new ScanService instance
func NewScanService(db *gorm.DB, chat ChatClient, model string, categorizer ICategorizer) *ScanService {
	return &ScanService{
		db:          db,
		chat:        chat,
		model:       model,
		categorizer: categorizer,
		log:         logger.Component("scan"),
	}
}

// DisplayName title-cases a normalized food name
func DisplayName(name string) string {
	return cases.Title(language.English).String(normalizeText(name))
}

// Scan sends the photos to the vision model, normalizes what it finds and
// adds foods not already in the user's inventory
func (s *ScanService) Scan(ctx context.Context, uid string, imageURLs []string) (*ScanResult, error) {
	urls := cleanList(imageURLs)
	if len(urls) == 0 || len(urls) > maxScanImages {
		return nil, validationError("between 1 and %d image URLs are required", maxScanImages)
	}
	parts := []ContentPart{{Type: "text", Text: visionPrompt}}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, validationError("invalid image URL %q", raw)
		}
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: raw}})
	}

	var reply struct {
		Foods []detectedFood `json:"foods"`
	}
	messages := []ChatMessage{{Role: "user", Content: parts}}
	if err := s.chat.CompleteJSON(ctx, s.model, messages, &reply); err != nil {
		return nil, fmt.Errorf("vision scan: %w", err)
	}

	items := s.normalizeFoods(ctx, reply.Foods)

	scan := models.Scan{
		ID:        uuid.New(),
		UID:       uid,
		ImageURLs: urls,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			id, dup, err := insertInventoryItem(tx, uid, &items[i])
			if err != nil {
				return err
			}
			items[i].InventoryID = id
			items[i].Duplicate = dup
		}
		scan.Items = items
		return tx.Create(&scan).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store scan: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"uid":     uid,
		"scan_id": scan.ID,
		"images":  len(urls),
		"foods":   len(items),
	}).Info("scan stored")

	return &ScanResult{ScanID: scan.ID.String(), Foods: items}, nil
}

// normalizeFoods title-cases, categorizes and dedups the model's output by
// lowercase-trimmed name
func (s *ScanService) normalizeFoods(ctx context.Context, foods []detectedFood) []models.ScanItem {
	seen := make(map[string]bool, len(foods))
	items := make([]models.ScanItem, 0, len(foods))
	for _, f := range foods {
		key := normalizeText(f.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		category, err := s.categorizer.Categorize(ctx, key)
		if err != nil {
			category = CategoryOther
		}
		items = append(items, models.ScanItem{
			Name:       DisplayName(key),
			Category:   category,
			Confidence: clampConfidence(f.Confidence),
			Source:     models.SourceScan,
		})
	}
	return items
}

// insertInventoryItem adds the item unless the user already has one with the same
// normalized name; it returns the inventory id and whether it was a duplicate
func insertInventoryItem(tx *gorm.DB, uid string, item *models.ScanItem) (string, bool, error) {
	normalized := normalizeText(item.Name)
	row := models.InventoryItem{
		ID:             uuid.New(),
		UID:            uid,
		Name:           item.Name,
		NormalizedName: normalized,
		Category:       item.Category,
		Confidence:     item.Confidence,
		Source:         item.Source,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}, {Name: "normalized_name"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return "", false, fmt.Errorf("failed to insert inventory item: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return row.ID.String(), false, nil
	}

	var existing models.InventoryItem
	if err := tx.Where("uid = ? AND normalized_name = ?", uid, normalized).First(&existing).Error; err != nil {
		return "", false, fmt.Errorf("failed to load existing inventory item: %w", err)
	}
	return existing.ID.String(), true, nil
}

// AddItem adds a manually entered food to the inventory
func (s *ScanService) AddItem(ctx context.Context, uid, name string) (*models.InventoryItem, bool, error) {
	key := normalizeText(name)
	if key == "" {
		return nil, false, validationError("name is required")
	}
	category, err := s.categorizer.Categorize(ctx, key)
	if err != nil {
		category = CategoryOther
	}
	item := models.ScanItem{Name: DisplayName(key), Category: category, Confidence: 1, Source: models.SourceManual}

	id, dup, err := insertInventoryItem(s.db.WithContext(ctx), uid, &item)
	if err != nil {
		return nil, false, err
	}
	var stored models.InventoryItem
	if err := s.db.WithContext(ctx).First(&stored, "id = ?", id).Error; err != nil {
		return nil, false, err
	}
	return &stored, dup, nil
}

// GetScan returns a scan owned by uid
func (s *ScanService) GetScan(ctx context.Context, uid, id string) (*models.Scan, error) {
	scanID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	var scan models.Scan
	if err := s.db.WithContext(ctx).First(&scan, "id = ?", scanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if scan.UID != uid {
		return nil, fmt.Errorf("scan %s belongs to another user: %w", id, ErrForbidden)
	}
	return &scan, nil
}

// ListInventory returns the user's items grouped by category
func (s *ScanService) ListInventory(ctx context.Context, uid string) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := s.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("category ASC, normalized_name ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

// DeleteInventoryItem removes one of the user's items
func (s *ScanService) DeleteInventoryItem(ctx context.Context, uid, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("inventory item %s: %w", id, ErrNotFound)
	}
	var item models.InventoryItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("inventory item %s: %w", id, ErrNotFound)
		}
		return err
	}
	if item.UID != uid {
		return fmt.Errorf("inventory item %s belongs to another user: %w", id, ErrForbidden)
	}
	return s.db.WithContext(ctx).Delete(&item).Error
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
