package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

const maxMealIngredients = 100

// MealRequest is the input of a meal generation
type MealRequest struct {
	Ingredients []string `json:"ingredients"`
	Goal        string   `json:"goal"`
	Filters     []string `json:"filters"`
}

// Meal is one suggestion returned by the chat model
type Meal struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	KeyIngredients []string `json:"keyIngredients"`
	Ingredients    []string `json:"ingredients"`
	Steps          []string `json:"steps"`
	PrepMinutes    int      `json:"prepMinutes"`
	Calories       float64  `json:"calories"`
	Protein        float64  `json:"protein"`
	Carbs          float64  `json:"carbs"`
	Fat            float64  `json:"fat"`
}

// MealResponse carries the meals and the quota left after this generation
type MealResponse struct {
	Meals     []Meal `json:"meals"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
}

const mealSystemPrompt = `You are a meal planning assistant. Suggest 3 to 5 meals that can be cooked mostly from the ingredients provided. Assume basic pantry staples (salt, pepper, oil, water) are available.
Respond with a JSON object of the form:
{"meals":[{"title":"","description":"","keyIngredients":[""],"ingredients":[""],"steps":[""],"prepMinutes":0,"calories":0,"protein":0,"carbs":0,"fat":0}]}
keyIngredients lists at most 6 main ingredients. Nutrition values are per serving, in kcal and grams.`

// MealService generates meal suggestions under the monthly quota
type MealService struct {
	chat         ChatClient
	model        string
	entitlements IEntitlementsService
	log          *logrus.Entry
}

// NewMealService creates a new MealService instance
func NewMealService(chat ChatClient, model string, entitlements IEntitlementsService) *MealService {
	return &MealService{
		chat:         chat,
		model:        model,
		entitlements: entitlements,
		log:          logger.Component("meals"),
	}
}

// Generate checks the quota, asks the chat model for meals and records one use.
// The increment is not atomic with the generation: a crash in between under-counts.
func (s *MealService) Generate(ctx context.Context, uid string, req *MealRequest) (*MealResponse, error) {
	ingredients := cleanList(req.Ingredients)
	if len(ingredients) == 0 {
		return nil, validationError("at least one ingredient is required")
	}
	if len(ingredients) > maxMealIngredients {
		return nil, validationError("at most %d ingredients are allowed", maxMealIngredients)
	}

	ent, err := s.entitlements.CheckQuota(ctx, uid)
	if err != nil {
		return nil, err
	}

	var reply struct {
		Meals []Meal `json:"meals"`
	}
	messages := []ChatMessage{
		{Role: "system", Content: mealSystemPrompt},
		{Role: "user", Content: buildMealPrompt(ingredients, strings.TrimSpace(req.Goal), cleanList(req.Filters))},
	}
	if err := s.chat.CompleteJSON(ctx, s.model, messages, &reply); err != nil {
		return nil, fmt.Errorf("meal generation: %w", err)
	}

	meals := make([]Meal, 0, len(reply.Meals))
	for _, m := range reply.Meals {
		if strings.TrimSpace(m.Title) == "" {
			continue
		}
		if len(m.KeyIngredients) == 0 {
			m.KeyIngredients = m.Ingredients
		}
		if len(m.KeyIngredients) > signatureIngredients {
			m.KeyIngredients = m.KeyIngredients[:signatureIngredients]
		}
		meals = append(meals, m)
	}
	if len(meals) == 0 {
		return nil, &UpstreamError{Service: "openai", StatusCode: 200, Payload: "model returned no meals"}
	}

	if err := s.entitlements.RecordMealGeneration(ctx, uid); err != nil {
		return nil, err
	}

	remaining := ent.MealGenerationsLimit - ent.MealGenerationsUsed - 1
	if remaining < 0 {
		remaining = 0
	}
	s.log.WithFields(logrus.Fields{
		"uid":       uid,
		"meals":     len(meals),
		"remaining": remaining,
	}).Info("meals generated")

	return &MealResponse{Meals: meals, Remaining: remaining, Limit: ent.MealGenerationsLimit}, nil
}

func buildMealPrompt(ingredients []string, goal string, filters []string) string {
	payload := map[string]interface{}{
		"ingredients": ingredients,
	}
	if goal != "" {
		payload["goal"] = goal
	}
	if len(filters) > 0 {
		payload["dietaryFilters"] = filters
	}
	b, _ := json.Marshal(payload)
	return "Suggest meals for this request:\n" + string(b)
}

// cleanList trims entries and drops empties
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
