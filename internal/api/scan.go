package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// ScanHandler handles fridge scans and the inventory they feed
type ScanHandler struct {
	scans       service.IScanService
	categorizer service.ICategorizer
	rateLimiter *middleware.RateLimiter
}

// NewScanHandler creates a new scan handler
func NewScanHandler(scans service.IScanService, categorizer service.ICategorizer, rateLimiter *middleware.RateLimiter) *ScanHandler {
	return &ScanHandler{
		scans:       scans,
		categorizer: categorizer,
		rateLimiter: rateLimiter,
	}
}

func (h *ScanHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/scan", withLimit(h.rateLimiter, h.Scan)...)
	router.GET("/scans/:id", h.GetScan)
	router.GET("/inventory", h.ListInventory)
	router.POST("/inventory", h.AddInventoryItem)
	router.DELETE("/inventory/:id", h.DeleteInventoryItem)
	router.POST("/categorize-food", h.Categorize)
}

// ScanRequest is the body of POST /scan
type ScanRequest struct {
	ImageURLs []string `json:"imageUrls" binding:"required"`
}

// Scan runs the vision model over the uploaded photos
func (h *ScanHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.scans.Scan(c.Request.Context(), middleware.UID(c), req.ImageURLs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ScanHandler) GetScan(c *gin.Context) {
	scan, err := h.scans.GetScan(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (h *ScanHandler) ListInventory(c *gin.Context) {
	items, err := h.scans.ListInventory(c.Request.Context(), middleware.UID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AddItemRequest is the body of POST /inventory
type AddItemRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddInventoryItem adds a manually entered food; an existing item is returned with 200
func (h *ScanHandler) AddInventoryItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, existed, err := h.scans.AddItem(c.Request.Context(), middleware.UID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"item": item, "duplicate": existed})
}

func (h *ScanHandler) DeleteInventoryItem(c *gin.Context) {
	if err := h.scans.DeleteInventoryItem(c.Request.Context(), middleware.UID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CategorizeRequest is the body of POST /categorize-food
type CategorizeRequest struct {
	FoodName string `json:"foodName" binding:"required"`
}

func (h *ScanHandler) Categorize(c *gin.Context) {
	var req CategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	category, err := h.categorizer.Categorize(c.Request.Context(), req.FoodName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}
