package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// SessionTokenHeader carries the upload secret from the phone
const SessionTokenHeader = "X-Session-Token"

// SessionHandler handles QR hand-off sessions
type SessionHandler struct {
	sessions service.ISessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions service.ISessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/sessions", h.Create)
	router.GET("/sessions/:id", h.Get)
}

// RegisterPublicRoutes registers the phone-side upload, authorized by the session token alone
func (h *SessionHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/sessions/:id/images", h.AddImage)
}

func (h *SessionHandler) Create(c *gin.Context) {
	created, err := h.sessions.Create(c.Request.Context(), middleware.UID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// AddImageRequest is the body of POST /sessions/:id/images
type AddImageRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *SessionHandler) AddImage(c *gin.Context) {
	var req AddImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sess, err := h.sessions.AddImage(c.Request.Context(), c.Param("id"), c.GetHeader(SessionTokenHeader), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
