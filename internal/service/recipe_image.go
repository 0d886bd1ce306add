package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

const (
	SimilarityThreshold   = 0.6
	signatureIngredients  = 6
	recipeImageIDLength   = 24
	defaultLeaseTTL       = 2 * time.Minute
	defaultPollInterval   = 500 * time.Millisecond
	defaultPollAttempts   = 12
	recipeImageKeyPattern = "recipe-images/%s.png"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// RecipeImageResult is what a meal-image request resolves to
type RecipeImageResult struct {
	ImageURL      string `json:"imageUrl"`
	RecipeImageID string `json:"recipeImageId"`
	Cached        bool   `json:"cached"`
}

type leaseOutcome int

const (
	leaseCacheHit leaseOutcome = iota
	leaseClaimed
	leaseFollower
)

// RecipeImageService reuses, or generates at most once, an image per meal signature
type RecipeImageService struct {
	db        *gorm.DB
	generator ImageGenerator
	blobs     BlobStore
	urlTTL    time.Duration

	leaseTTL     time.Duration
	pollInterval time.Duration
	pollAttempts int
	now          func() time.Time
	log          *logrus.Entry
}

// NewRecipeImageService creates a new RecipeImageService instance
func NewRecipeImageService(db *gorm.DB, generator ImageGenerator, blobs BlobStore, urlTTL time.Duration) *RecipeImageService {
	return &RecipeImageService{
		db:           db,
		generator:    generator,
		blobs:        blobs,
		urlTTL:       urlTTL,
		leaseTTL:     defaultLeaseTTL,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
		now:          time.Now,
		log:          logger.Component("recipeimage"),
	}
}

func normalizeText(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// NormalizeIngredients lowercases, trims and dedups ingredient names, keeping first occurrences
func NormalizeIngredients(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		n := normalizeText(item)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Jaccard returns |A∩B| / |A∪B| over the normalized ingredient sets
func Jaccard(a, b []string) float64 {
	setA := NormalizeIngredients(a)
	setB := NormalizeIngredients(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inA := make(map[string]struct{}, len(setA))
	for _, x := range setA {
		inA[x] = struct{}{}
	}
	shared := 0
	for _, x := range setB {
		if _, ok := inA[x]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// ComputeSignature builds "title|ing1,ing2,..." from the normalized title and
// the first six normalized ingredients in sorted order
func ComputeSignature(title string, keyIngredients []string) string {
	ingredients := NormalizeIngredients(keyIngredients)
	sort.Strings(ingredients)
	if len(ingredients) > signatureIngredients {
		ingredients = ingredients[:signatureIngredients]
	}
	return normalizeText(title) + "|" + strings.Join(ingredients, ",")
}

// ComputeRecipeImageID hashes the signature into the cache key
func ComputeRecipeImageID(title string, keyIngredients []string) string {
	sum := sha256.Sum256([]byte(ComputeSignature(title, keyIngredients)))
	return hex.EncodeToString(sum[:])[:recipeImageIDLength]
}

// Resolve returns an image for the meal, reusing a similar cached image,
// waiting on a concurrent generation, or generating one under a lease.
// ErrImageInProgress means another request still holds the lease.
func (s *RecipeImageService) Resolve(ctx context.Context, title string, keyIngredients []string) (*RecipeImageResult, error) {
	if strings.TrimSpace(title) == "" {
		return nil, validationError("title is required")
	}
	ingredients := NormalizeIngredients(keyIngredients)

	match, err := s.findSimilar(ctx, ingredients)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return s.resultFor(ctx, match)
	}

	id := ComputeRecipeImageID(title, ingredients)
	log := s.log.WithField("recipe_image_id", id)

	outcome, record, leaseID, err := s.acquireLease(ctx, id, title, ingredients)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire image lease: %w", err)
	}

	switch outcome {
	case leaseCacheHit:
		log.Debug("recipe image cache hit")
		return s.resultFor(ctx, record)
	case leaseFollower:
		log.Debug("recipe image lease held elsewhere, waiting")
		return s.waitForResult(ctx, id)
	}

	log.Info("claimed recipe image lease")
	return s.generate(ctx, id, leaseID, title, ingredients)
}

// findSimilar scans finished records and returns the first with the highest
// Jaccard score, provided it reaches the threshold
func (s *RecipeImageService) findSimilar(ctx context.Context, ingredients []string) (*models.RecipeImage, error) {
	if len(ingredients) == 0 {
		return nil, nil
	}

	var records []models.RecipeImage
	err := s.db.WithContext(ctx).
		Where("download_url <> ''").
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cached images: %w", err)
	}

	bestIdx, best := -1, 0.0
	for i := range records {
		if score := Jaccard(ingredients, records[i].Ingredients); score > best {
			bestIdx, best = i, score
		}
	}
	if bestIdx < 0 || best < SimilarityThreshold {
		return nil, nil
	}
	s.log.WithFields(logrus.Fields{
		"recipe_image_id": records[bestIdx].ID,
		"score":           best,
	}).Debug("reusing similar recipe image")
	return &records[bestIdx], nil
}

// acquireLease reads the record for id inside a transaction and either
// reports a finished image, claims the lease, or reports a live lease.
// The claim is a compare-and-swap on version, so two transactions that both
// observe a free lease cannot both win.
func (s *RecipeImageService) acquireLease(ctx context.Context, id, title string, ingredients []string) (leaseOutcome, *models.RecipeImage, string, error) {
	var (
		outcome leaseOutcome
		record  models.RecipeImage
	)
	leaseID := uuid.NewString()
	signature := ComputeSignature(title, ingredients)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		expires := now.Add(s.leaseTTL)

		candidate := models.RecipeImage{
			ID:             id,
			Signature:      signature,
			Title:          strings.TrimSpace(title),
			Ingredients:    ingredients,
			LeaseID:        &leaseID,
			LeaseExpiresAt: &expires,
			Version:        1,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			outcome = leaseClaimed
			return nil
		}

		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			return err
		}
		if record.Ready() {
			outcome = leaseCacheHit
			return nil
		}
		if record.LeaseHeld(now) {
			outcome = leaseFollower
			return nil
		}

		res = tx.Model(&models.RecipeImage{}).
			Where("id = ? AND version = ?", id, record.Version).
			Updates(map[string]interface{}{
				"signature":        signature,
				"lease_id":         leaseID,
				"lease_expires_at": expires,
				"last_error":       "",
				"version":          record.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			outcome = leaseFollower
			return nil
		}
		outcome = leaseClaimed
		return nil
	})
	if err != nil {
		return 0, nil, "", err
	}
	return outcome, &record, leaseID, nil
}

// waitForResult polls the record until the lease holder finishes or fails
func (s *RecipeImageService) waitForResult(ctx context.Context, id string) (*RecipeImageResult, error) {
	for i := 0; i < s.pollAttempts; i++ {
		if err := sleepContext(ctx, s.pollInterval); err != nil {
			return nil, err
		}

		var record models.RecipeImage
		if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to poll recipe image: %w", err)
		}
		if record.Ready() {
			return s.resultFor(ctx, &record)
		}
		if record.LastError != "" {
			return nil, &UpstreamError{Service: "openai-images", Payload: record.LastError}
		}
	}
	return nil, ErrImageInProgress
}

// generate runs the image API as lease holder, stores the result and releases the lease.
// The work is detached from request cancellation and bounded by the lease TTL.
func (s *RecipeImageService) generate(ctx context.Context, id, leaseID, title string, ingredients []string) (*RecipeImageResult, error) {
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.leaseTTL)
	defer cancel()

	data, err := s.generator.Generate(workCtx, BuildMealImagePrompt(title, ingredients))
	if err != nil {
		s.release(workCtx, id, leaseID, err)
		return nil, err
	}

	key := fmt.Sprintf(recipeImageKeyPattern, id)
	if err := s.blobs.PutObject(workCtx, key, data, "image/png"); err != nil {
		s.release(workCtx, id, leaseID, err)
		return nil, err
	}
	url, err := s.blobs.PresignGet(workCtx, key, s.urlTTL)
	if err != nil {
		s.release(workCtx, id, leaseID, err)
		return nil, fmt.Errorf("failed to sign image URL: %w", err)
	}

	res := s.db.WithContext(workCtx).Model(&models.RecipeImage{}).
		Where("id = ? AND lease_id = ?", id, leaseID).
		Updates(map[string]interface{}{
			"storage_path":     key,
			"download_url":     url,
			"lease_id":         nil,
			"lease_expires_at": nil,
			"last_error":       "",
			"version":          gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to record generated image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.WithField("recipe_image_id", id).Warn("lease expired before generation finished")
	}

	return &RecipeImageResult{ImageURL: url, RecipeImageID: id}, nil
}

// release records a terminal failure and clears the lease so the next request can retry
func (s *RecipeImageService) release(ctx context.Context, id, leaseID string, cause error) {
	s.log.WithError(cause).WithField("recipe_image_id", id).Error("recipe image generation failed")

	err := s.db.WithContext(ctx).Model(&models.RecipeImage{}).
		Where("id = ? AND lease_id = ?", id, leaseID).
		Updates(map[string]interface{}{
			"last_error":       cause.Error(),
			"lease_id":         nil,
			"lease_expires_at": nil,
			"version":          gorm.Expr("version + 1"),
		}).Error
	if err != nil {
		s.log.WithError(err).WithField("recipe_image_id", id).Error("failed to release image lease")
	}
}

// resultFor re-signs the stored object so cached hits never hand out an expired URL
func (s *RecipeImageService) resultFor(ctx context.Context, record *models.RecipeImage) (*RecipeImageResult, error) {
	url := record.DownloadURL
	if record.StoragePath != "" {
		signed, err := s.blobs.PresignGet(ctx, record.StoragePath, s.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign image URL: %w", err)
		}
		url = signed
	}
	return &RecipeImageResult{ImageURL: url, RecipeImageID: record.ID, Cached: true}, nil
}
