package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aifiles/internal/export"
	"aifiles/internal/intake"
	"aifiles/internal/models"
	"aifiles/internal/session"
	"aifiles/internal/summary"
)

// SessionController is the state machine the routes drive.
type SessionController interface {
	Snapshot() models.SessionState
	Subscribe() (models.SessionChan, func())
	Upload(ctx context.Context, f intake.File) (*models.UploadedDocument, error)
	SetInstruction(text string) error
	Generate(ctx context.Context, instruction string, started func(models.SessionState)) (models.SessionState, error)
	ToggleEdit() (bool, error)
	Edit(text string) error
	Back() models.SessionState
}

// Handler wires HTTP routes to the session controller and the export helpers.
type Handler struct {
	session        SessionController
	clipboard      export.Clipboard
	publicURL      string
	maxUploadBytes int64
}

const defaultMaxUploadBytes = 32 << 20

// NewHandler constructs a Handler instance.
func NewHandler(controller SessionController, clipboard export.Clipboard, publicURL string, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		session:        controller,
		clipboard:      clipboard,
		publicURL:      publicURL,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/prompt-examples", h.promptExamples)

	s := api.Group("/session")
	s.GET("", h.getSession)
	s.GET("/events", h.sessionEvents)
	s.POST("/upload", h.uploadFile)
	s.PUT("/instruction", h.setInstruction)
	s.POST("/generate", h.generate)
	s.POST("/edit-mode", h.toggleEdit)
	s.PUT("/summary", h.editSummary)
	s.POST("/back", h.back)
	s.GET("/download", h.download)
	s.POST("/copy", h.copyToClipboard)
	s.GET("/share", h.shareSheet)
	s.GET("/share/:target", h.shareLink)
	s.GET("/email", h.emailDraft)
	s.POST("/email", h.composeEmail)
}

func sessionView(state models.SessionState) gin.H {
	view := gin.H{"state": state}
	if doc := state.Document; doc != nil {
		view["file"] = gin.H{
			"name":       doc.Name,
			"size_kb":    doc.SizeKB(),
			"word_count": doc.WordCount(),
		}
	}
	return view
}

// sessionError maps controller errors to a status and user-facing message.
func sessionError(err error) (int, string) {
	var vErr *intake.ValidationError
	var rErr *intake.ReadError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Reason
	case errors.As(err, &rErr):
		return http.StatusUnprocessableEntity, "Failed to read file content"
	case errors.Is(err, session.ErrGenerationInFlight):
		return http.StatusConflict, err.Error()
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrEmptyInstruction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrWrongScreen), errors.Is(err, session.ErrNotEditing):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusBadGateway, err.Error()
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, msg := sessionError(err)
	c.JSON(status, gin.H{"error": msg})
}

func (h *Handler) promptExamples(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"examples": summary.PromptExamples})
}

func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(h.session.Snapshot()))
}

// sessionEvents streams a snapshot after every transition until the client goes away.
func (h *Handler) sessionEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	ch, cancel := h.session.Subscribe()
	defer cancel()

	setSSEHeaders(c)
	send := newEventSender(c, flusher)
	if err := send("state", sessionView(h.session.Snapshot())); err != nil {
		return
	}
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send("state", sessionView(snap)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File size must be less than 10MB"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	doc, err := h.session.Upload(c.Request.Context(), intake.FromMultipart(file))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"name":          doc.Name,
		"size":          doc.SizeBytes,
		"size_kb":       doc.SizeKB(),
		"word_count":    doc.WordCount(),
		"mime_type":     doc.MimeType,
		"detected_mime": doc.DetectedMIME,
	})
}

type instructionRequest struct {
	Instruction string `json:"instruction"`
}

func (h *Handler) setInstruction(c *gin.Context) {
	var req instructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.session.SetInstruction(req.Instruction); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// generate answers with JSON when a guard refuses the request, and with an SSE
// stream (ack, then done or error) once generation has started.
func (h *Handler) generate(c *gin.Context) {
	var req instructionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	var send func(string, interface{}) error
	streaming := false
	state, err := h.session.Generate(c.Request.Context(), req.Instruction, func(started models.SessionState) {
		streaming = true
		setSSEHeaders(c)
		send = newEventSender(c, flusher)
		_ = send("ack", gin.H{
			"instruction":   started.Instruction,
			"is_generating": started.IsGenerating,
		})
	})
	if !streaming {
		h.respondError(c, err)
		return
	}
	if err != nil {
		_, msg := sessionError(err)
		_ = send("error", gin.H{"message": msg})
		return
	}
	_ = send("done", sessionView(state))
}

func (h *Handler) toggleEdit(c *gin.Context) {
	editing, err := h.session.ToggleEdit()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"editing": editing})
}

func (h *Handler) editSummary(c *gin.Context) {
	var req struct {
		Summary *string `json:"summary"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Summary == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "summary is required"})
		return
	}
	if err := h.session.Edit(*req.Summary); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) back(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(h.session.Back()))
}

// resultsOnly writes a conflict and returns false unless a summary is showing.
func (h *Handler) resultsOnly(c *gin.Context) (models.SessionState, bool) {
	state := h.session.Snapshot()
	if state.Screen != models.ScreenResults || state.Document == nil {
		h.respondError(c, session.ErrWrongScreen)
		return state, false
	}
	return state, true
}

func (h *Handler) download(c *gin.Context) {
	state, ok := h.resultsOnly(c)
	if !ok {
		return
	}
	name := export.DownloadName(state.Document.Name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(state.SummaryText))
}

func (h *Handler) copyToClipboard(c *gin.Context) {
	var req struct {
		What string `json:"what"` // summary | link
	}
	_ = c.ShouldBindJSON(&req)
	state, ok := h.resultsOnly(c)
	if !ok {
		return
	}
	text := state.SummaryText
	if strings.EqualFold(req.What, "link") {
		text = h.publicURL
	}
	if err := export.Copy(h.clipboard, text); err != nil {
		log.Printf("[api] %v", err)
		c.JSON(http.StatusOK, gin.H{"copied": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": true})
}

func (h *Handler) payload(state models.SessionState) export.Payload {
	return export.Payload{
		FileName: state.Document.Name,
		Summary:  state.SummaryText,
		PageURL:  h.publicURL,
	}
}

func (h *Handler) shareSheet(c *gin.Context) {
	state, ok := h.resultsOnly(c)
	if !ok {
		return
	}
	links := make(map[string]string, len(export.Targets))
	for _, target := range export.Targets {
		u, err := export.ShareURL(target, h.payload(state))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		links[string(target)] = u
	}
	c.JSON(http.StatusOK, gin.H{
		"file_name": state.Document.Name,
		"preview":   export.Preview(state.SummaryText, 150),
		"page_url":  h.publicURL,
		"links":     links,
	})
}

func (h *Handler) shareLink(c *gin.Context) {
	state, ok := h.resultsOnly(c)
	if !ok {
		return
	}
	u, err := export.ShareURL(export.Target(strings.ToLower(c.Param("target"))), h.payload(state))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

func (h *Handler) emailDraft(c *gin.Context) {
	state, ok := h.resultsOnly(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"draft":   export.NewEmailDraft(state.Document.Name),
		"preview": export.Preview(state.SummaryText, 200),
	})
}

func (h *Handler) composeEmail(c *gin.Context) {
	state, ok := h.resultsOnly(c)
	if !ok {
		return
	}
	draft := export.NewEmailDraft(state.Document.Name)
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := draft.MailtoURL(state.SummaryText)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u, "recipients": draft.ValidRecipients()})
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

func newEventSender(c *gin.Context, flusher http.Flusher) func(string, interface{}) error {
	return func(event string, payload interface{}) error {
		var data []byte
		switch v := payload.(type) {
		case string:
			data = []byte(v)
		default:
			var err error
			data, err = json.Marshal(v)
			if err != nil {
				return err
			}
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
}
