package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// MealHandler handles meal suggestions and their images
type MealHandler struct {
	meals       service.IMealService
	images      service.IRecipeImageService
	rateLimiter *middleware.RateLimiter
}

// NewMealHandler creates a new meal handler
func NewMealHandler(meals service.IMealService, images service.IRecipeImageService, rateLimiter *middleware.RateLimiter) *MealHandler {
	return &MealHandler{
		meals:       meals,
		images:      images,
		rateLimiter: rateLimiter,
	}
}

func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/meals", h.GenerateMeals)
	router.POST("/meal-image", withLimit(h.rateLimiter, h.MealImage)...)
}

// GenerateMeals suggests meals from the given ingredients and counts one generation
func (h *MealHandler) GenerateMeals(c *gin.Context) {
	var req service.MealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.meals.Generate(c.Request.Context(), middleware.UID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MealImageRequest is the body of POST /meal-image
type MealImageRequest struct {
	Title          string   `json:"title" binding:"required"`
	KeyIngredients []string `json:"keyIngredients"`
}

// MealImage returns a cached or freshly generated image, or 202 while another request generates it
func (h *MealHandler) MealImage(c *gin.Context) {
	var req MealImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.images.Resolve(c.Request.Context(), req.Title, req.KeyIngredients)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
