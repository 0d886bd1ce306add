package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// UploadHandler issues signed storage URLs
type UploadHandler struct {
	uploads service.IUploadService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploads service.IUploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) RegisterRoutes(router *gin.RouterGroup) {
	uploads := router.Group("/uploads")
	{
		uploads.POST("/init", h.Init)
		uploads.POST("/complete", h.Complete)
		uploads.GET("/read-url", h.ReadURL)
	}
}

// InitUploadRequest is the body of POST /uploads/init
type InitUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// StoragePathRequest is the body of POST /uploads/complete
type StoragePathRequest struct {
	StoragePath string `json:"storagePath" binding:"required"`
}

func (h *UploadHandler) Init(c *gin.Context) {
	var req InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ticket, err := h.uploads.Init(c.Request.Context(), middleware.UID(c), req.FileName, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *UploadHandler) Complete(c *gin.Context) {
	var req StoragePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	signed, err := h.uploads.Complete(c.Request.Context(), middleware.UID(c), req.StoragePath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}

func (h *UploadHandler) ReadURL(c *gin.Context) {
	signed, err := h.uploads.ReadURL(c.Request.Context(), middleware.UID(c), c.Query("storagePath"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}
