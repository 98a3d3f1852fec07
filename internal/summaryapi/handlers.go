package summaryapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aifiles/internal/intake"
	"aifiles/internal/models"
	"aifiles/internal/service/summaries"
	"aifiles/internal/worker"
)

// SummaryService is what the routes need from the storage-backed service.
type SummaryService interface {
	SaveUpload(ctx context.Context, clientKey string, f intake.File, prompt string) (*models.Upload, error)
	Generate(ctx context.Context, fileID, prompt string) (*models.Summary, error)
	GetSummary(ctx context.Context, id string) (*models.Summary, error)
}

// Handler serves the upload / generate / fetch API used by the remote summary backend.
type Handler struct {
	svc            SummaryService
	limiter        *RateLimiter
	secret         string
	maxUploadBytes int64
}

type HandlerOptions struct {
	Limiter        *RateLimiter
	SharedSecret   string
	MaxUploadBytes int64
}

func NewHandler(svc SummaryService, opts HandlerOptions) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Handler{
		svc:            svc,
		limiter:        opts.Limiter,
		secret:         opts.SharedSecret,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// RegisterRoutes attaches the API under /api plus an unauthenticated health check.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(SharedSecret(h.secret))
	if h.limiter != nil {
		api.Use(h.limiter.Middleware())
	}
	api.POST("/upload", h.upload)
	api.POST("/generate-summary", h.generateSummary)
	api.GET("/summary/:id", h.getSummary)
}

type generateRequest struct {
	FileID string `json:"fileId"`
	Prompt string `json:"prompt"`
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File size must be less than 10MB"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	up, err := h.svc.SaveUpload(c.Request.Context(), clientKey(c), intake.FromMultipart(fh), c.PostForm("prompt"))
	if err != nil {
		status, msg := apiError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[summaryapi] upload %s failed: %v", fh.Filename, err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"fileId":   up.ID,
		"fileName": up.FileName,
		"size":     up.Size,
		"mimeType": up.MimeType,
	})
}

func (h *Handler) generateSummary(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if strings.TrimSpace(req.FileID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileId is required"})
		return
	}
	sum, err := h.svc.Generate(c.Request.Context(), req.FileID, req.Prompt)
	if err != nil {
		status, msg := apiError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[summaryapi] generate for %s failed: %v", req.FileID, err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"summaryId": sum.ID})
}

func (h *Handler) getSummary(c *gin.Context) {
	sum, err := h.svc.GetSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, summaries.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Summary not found"})
			return
		}
		status, msg := apiError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        sum.ID,
		"fileId":    sum.FileID,
		"fileName":  sum.FileName,
		"prompt":    sum.Prompt,
		"summary":   sum.Content,
		"backend":   sum.Backend,
		"createdAt": sum.CreatedAt,
	})
}

func apiError(err error) (int, string) {
	var vErr *intake.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Reason
	case errors.Is(err, summaries.ErrNotFound):
		return http.StatusNotFound, "File not found"
	case errors.Is(err, summaries.ErrPromptRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, summaries.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, "Failed to read file content"
	case errors.Is(err, summaries.ErrUploadNotReady):
		return http.StatusConflict, err.Error()
	case errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrDispatcherStopped):
		return http.StatusServiceUnavailable, "Service at capacity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
