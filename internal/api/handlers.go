package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/provider"
)

// APIHandlers contains the handlers for the provider endpoints.
type APIHandlers struct {
	provider *provider.Provider
	debug    bool
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(p *provider.Provider, debug bool) *APIHandlers {
	return &APIHandlers{
		provider: p,
		debug:    debug,
	}
}

// Browsers handles GET /v1/browsers.
func (h *APIHandlers) Browsers(c *gin.Context) {
	browsers, err := h.provider.BrowserList(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("Failed to fetch browser list: %v", err), "code": 502})
		return
	}
	c.JSON(http.StatusOK, BrowsersResponse{Browsers: browsers})
}

// OpenBrowser handles POST /v1/sessions.
func (h *APIHandlers) OpenBrowser(c *gin.Context) {
	var request OpenBrowserRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err), "code": 400})
		return
	}

	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	if err := h.provider.OpenBrowser(request.ID, request.URL, request.Browser); err != nil {
		if errors.Is(err, provider.ErrSessionExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": 409})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": 502})
		return
	}

	c.JSON(http.StatusCreated, OpenBrowserResponse{ID: request.ID})
}

// CloseBrowser handles DELETE /v1/sessions/:id.
func (h *APIHandlers) CloseBrowser(c *gin.Context) {
	id := c.Param("id")
	if err := h.provider.CloseBrowser(id); err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResizeWindow handles POST /v1/sessions/:id/resize.
func (h *APIHandlers) ResizeWindow(c *gin.Context) {
	var request ResizeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err), "code": 400})
		return
	}

	id := c.Param("id")
	if err := h.provider.ResizeWindow(id, request.Width, request.Height); err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MaximizeWindow handles POST /v1/sessions/:id/maximize.
func (h *APIHandlers) MaximizeWindow(c *gin.Context) {
	id := c.Param("id")
	if err := h.provider.MaximizeWindow(id); err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TakeScreenshot handles POST /v1/sessions/:id/screenshot. The PNG is
// returned in the response body and, when a path is given, written there too.
func (h *APIHandlers) TakeScreenshot(c *gin.Context) {
	var request ScreenshotRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err), "code": 400})
		return
	}

	id := c.Param("id")
	png, err := h.provider.TakeScreenshot(id, request.Path)
	if err != nil {
		h.sessionError(c, id, err)
		return
	}

	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "no-cache")
	if _, err = c.Writer.Write(png); err != nil {
		log.Debugf("Error writing screenshot response for session %s: %v", id, err)
	}
}

// ReportJobResult handles POST /v1/sessions/:id/status.
func (h *APIHandlers) ReportJobResult(c *gin.Context) {
	var request StatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request: %v", err), "code": 400})
		return
	}

	id := c.Param("id")
	if err := h.provider.ReportJobResult(c.Request.Context(), id, request.Status, request.Remark); err != nil {
		h.sessionError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandlers) sessionError(c *gin.Context, id string, err error) {
	if errors.Is(err, provider.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Unknown session %s", id), "code": 404})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "code": 502})
}
