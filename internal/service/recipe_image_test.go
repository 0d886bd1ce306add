package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

func newTestRecipeImageService(t *testing.T, gen ImageGenerator) (*RecipeImageService, *memoryBlobStore) {
	t.Helper()
	blobs := newMemoryBlobStore()
	svc := NewRecipeImageService(newTestDB(t), gen, blobs, 7*24*time.Hour)
	svc.pollInterval = 10 * time.Millisecond
	return svc, blobs
}

func TestComputeRecipeImageIDIsDeterministicAndOrderInsensitive(t *testing.T) {
	first := ComputeRecipeImageID("Chicken Stir Fry", []string{"chicken", "broccoli"})
	second := ComputeRecipeImageID("Chicken Stir Fry", []string{"chicken", "broccoli"})
	reordered := ComputeRecipeImageID("Chicken Stir Fry", []string{"broccoli", "chicken"})

	assert.Len(t, first, 24)
	assert.Equal(t, first, second)
	assert.Equal(t, first, reordered)
	assert.Equal(t, first, ComputeRecipeImageID("  chicken   STIR fry ", []string{" Broccoli", "CHICKEN", "chicken"}))
	assert.NotEqual(t, first, ComputeRecipeImageID("Beef Stir Fry", []string{"chicken", "broccoli"}))
}

func TestComputeSignatureKeepsSixSortedIngredients(t *testing.T) {
	sig := ComputeSignature("Big Salad", []string{"tomato", "lettuce", "cucumber", "onion", "feta", "olive", "carrot"})
	assert.Equal(t, "big salad|carrot,cucumber,feta,lettuce,olive,onion", sig)
}

func TestJaccard(t *testing.T) {
	score := Jaccard([]string{"chicken", "rice"}, []string{"chicken", "rice", "broccoli"})
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
	assert.GreaterOrEqual(t, score, SimilarityThreshold)

	assert.Equal(t, 0.0, Jaccard(nil, nil))
	assert.Equal(t, 1.0, Jaccard([]string{"Rice ", "rice"}, []string{"rice"}))
	assert.Equal(t, 0.0, Jaccard([]string{"rice"}, []string{"beans"}))
}

func TestNormalizeIngredients(t *testing.T) {
	got := NormalizeIngredients([]string{" Green  Beans", "", "green beans", "Rice"})
	assert.Equal(t, []string{"green beans", "rice"}, got)
}

func TestResolveGeneratesOnceThenHitsCache(t *testing.T) {
	gen := &countingGenerator{}
	svc, blobs := newTestRecipeImageService(t, gen)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "Chicken Stir Fry", []string{"chicken", "broccoli"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Contains(t, res.ImageURL, "recipe-images/"+res.RecipeImageID+".png")
	assert.Contains(t, blobs.objects, "recipe-images/"+res.RecipeImageID+".png")

	var stored models.RecipeImage
	require.NoError(t, svc.db.First(&stored, "id = ?", res.RecipeImageID).Error)
	assert.True(t, stored.Ready())
	assert.Nil(t, stored.LeaseID)
	assert.Nil(t, stored.LeaseExpiresAt)

	again, err := svc.Resolve(ctx, "Chicken Stir Fry", []string{"broccoli", "chicken"})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, res.RecipeImageID, again.RecipeImageID)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestResolveShortCircuitsOnSimilarIngredients(t *testing.T) {
	gen := &countingGenerator{}
	svc, _ := newTestRecipeImageService(t, gen)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "Chicken Rice Bowl", []string{"chicken", "rice", "broccoli"})
	require.NoError(t, err)

	similar, err := svc.Resolve(ctx, "Teriyaki Chicken", []string{"chicken", "rice"})
	require.NoError(t, err)
	assert.True(t, similar.Cached)
	assert.Equal(t, first.RecipeImageID, similar.RecipeImageID)
	assert.EqualValues(t, 1, gen.calls.Load())

	_, err = svc.Resolve(ctx, "Salmon Tacos", []string{"salmon", "tortilla"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestResolveConcurrentRequestsGenerateAtMostOnce(t *testing.T) {
	gen := &countingGenerator{delay: 100 * time.Millisecond}
	svc, _ := newTestRecipeImageService(t, gen)
	svc.pollAttempts = 100

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*RecipeImageResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(context.Background(), "Veggie Curry", []string{"chickpeas", "spinach", "coconut milk"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].RecipeImageID, results[i].RecipeImageID)
	}
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestAcquireLeaseClaimsOnlyOncePerWindow(t *testing.T) {
	svc, _ := newTestRecipeImageService(t, &countingGenerator{})
	ctx := context.Background()
	ingredients := []string{"egg", "toast"}
	id := ComputeRecipeImageID("Egg Toast", ingredients)

	outcome, _, _, err := svc.acquireLease(ctx, id, "Egg Toast", ingredients)
	require.NoError(t, err)
	assert.Equal(t, leaseClaimed, outcome)

	outcome, _, _, err = svc.acquireLease(ctx, id, "Egg Toast", ingredients)
	require.NoError(t, err)
	assert.Equal(t, leaseFollower, outcome)
}

func TestResolveReclaimsExpiredLease(t *testing.T) {
	gen := &countingGenerator{}
	svc, _ := newTestRecipeImageService(t, gen)
	ctx := context.Background()
	ingredients := NormalizeIngredients([]string{"pasta", "tomato"})
	id := ComputeRecipeImageID("Pasta Pomodoro", ingredients)

	stale := "crashed-worker"
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, svc.db.Create(&models.RecipeImage{
		ID:             id,
		Signature:      ComputeSignature("Pasta Pomodoro", ingredients),
		Ingredients:    ingredients,
		LeaseID:        &stale,
		LeaseExpiresAt: &expired,
		Version:        3,
	}).Error)

	res, err := svc.Resolve(ctx, "Pasta Pomodoro", ingredients)
	require.NoError(t, err)
	assert.Equal(t, id, res.RecipeImageID)
	assert.EqualValues(t, 1, gen.calls.Load())

	var stored models.RecipeImage
	require.NoError(t, svc.db.First(&stored, "id = ?", id).Error)
	assert.True(t, stored.Ready())
	assert.Greater(t, stored.Version, int64(3))
}

func TestResolveFollowerGivesUpWhileLeaseIsLive(t *testing.T) {
	gen := &countingGenerator{}
	svc, _ := newTestRecipeImageService(t, gen)
	svc.pollAttempts = 2
	ingredients := NormalizeIngredients([]string{"tofu", "noodles"})
	id := ComputeRecipeImageID("Tofu Noodles", ingredients)

	holder := "other-request"
	expires := time.Now().Add(time.Minute)
	require.NoError(t, svc.db.Create(&models.RecipeImage{
		ID:             id,
		Signature:      ComputeSignature("Tofu Noodles", ingredients),
		Ingredients:    ingredients,
		LeaseID:        &holder,
		LeaseExpiresAt: &expires,
		Version:        1,
	}).Error)

	_, err := svc.Resolve(context.Background(), "Tofu Noodles", ingredients)
	assert.ErrorIs(t, err, ErrImageInProgress)
	assert.EqualValues(t, 0, gen.calls.Load())
}

func TestResolveFailureReleasesLeaseForRetry(t *testing.T) {
	gen := &countingGenerator{err: &UpstreamError{Service: "openai-images", StatusCode: 500, Payload: "boom"}}
	svc, _ := newTestRecipeImageService(t, gen)
	ctx := context.Background()
	ingredients := []string{"lentils", "carrot"}

	_, err := svc.Resolve(ctx, "Lentil Soup", ingredients)
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))

	id := ComputeRecipeImageID("Lentil Soup", ingredients)
	var stored models.RecipeImage
	require.NoError(t, svc.db.First(&stored, "id = ?", id).Error)
	assert.Contains(t, stored.LastError, "boom")
	assert.Nil(t, stored.LeaseID)

	gen.err = nil
	res, err := svc.Resolve(ctx, "Lentil Soup", ingredients)
	require.NoError(t, err)
	assert.Equal(t, id, res.RecipeImageID)

	require.NoError(t, svc.db.First(&stored, "id = ?", id).Error)
	assert.Empty(t, stored.LastError)
	assert.True(t, stored.Ready())
}

func TestResolveRequiresTitle(t *testing.T) {
	svc, _ := newTestRecipeImageService(t, &countingGenerator{})
	_, err := svc.Resolve(context.Background(), "  ", []string{"rice"})
	assert.ErrorIs(t, err, ErrValidation)
}
