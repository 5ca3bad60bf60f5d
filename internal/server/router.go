package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/lexicon/internal/messages"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHeartbeatInterval = 25 * time.Second

var (
	errMissingMessagesService = errors.New("messages service dependency required")
)

type Dependencies struct {
	MessagesService   *messages.Service
	Events            *EventDispatcher
	Logger            *zap.Logger
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.MessagesService == nil {
		return nil, errMissingMessagesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		messagesService: deps.MessagesService,
		events:          events,
		logger:          logger,
		heartbeat:       heartbeat,
	}

	router.POST("/messages/sync", handler.handleSync)
	router.POST("/messages/untranslated", handler.handleListUntranslated)
	router.POST("/messages/find", handler.handleFindProjectMessages)
	router.POST("/messages/import", handler.handleImportTranslations)
	router.GET("/messages", handler.handleListMessages)
	router.POST("/messages/edit", handler.handleEditMessage)
	router.POST("/messages/remove", handler.handleRemoveMessages)
	router.GET("/projects", handler.handleListProjects)
	router.POST("/projects/remove", handler.handleRemoveProject)
	router.POST("/projects/clear", handler.handleClearProject)
	router.GET("/projects/:id/events", handler.handleProjectEvents)

	return router, nil
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Type"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type httpHandler struct {
	messagesService *messages.Service
	events          *EventDispatcher
	logger          *zap.Logger
	heartbeat       time.Duration
}

type syncRequestPayload struct {
	Name       string          `json:"name"`
	Maintainer string          `json:"maintainer"`
	Messages   json.RawMessage `json:"messages"`
}

func (h *httpHandler) handleSync(c *gin.Context) {
	var request syncRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if strings.TrimSpace(request.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_project_name"})
		return
	}

	submission, err := messages.DecodeSubmission(request.Messages)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.messagesService.Sync(c.Request.Context(), messages.SyncRequest{
		Name:       request.Name,
		Maintainer: request.Maintainer,
		Messages:   submission,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.events.Publish(ProjectEvent{
		ProjectID: result.Project.ID,
		EventType: EventMessagesSynced,
		Languages: collectLanguages(result.Messages),
		Timestamp: time.Now().UTC(),
	})

	c.JSON(http.StatusOK, result.Messages)
}

type projectLanguagesPayload struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

func (h *httpHandler) handleListUntranslated(c *gin.Context) {
	name, langs, ok := h.bindProjectLanguages(c)
	if !ok {
		return
	}
	records, err := h.messagesService.ListUntranslated(c.Request.Context(), name, langs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *httpHandler) handleFindProjectMessages(c *gin.Context) {
	name, langs, ok := h.bindProjectLanguages(c)
	if !ok {
		return
	}
	records, err := h.messagesService.FindProjectMessages(c.Request.Context(), name, langs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *httpHandler) bindProjectLanguages(c *gin.Context) (messages.ProjectName, []string, bool) {
	var request projectLanguagesPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return "", nil, false
	}
	name, err := messages.NewProjectName(request.Name)
	if err != nil {
		h.writeError(c, err)
		return "", nil, false
	}
	langs, err := messages.ParseLanguageList(request.Lang)
	if err != nil {
		h.writeError(c, err)
		return "", nil, false
	}
	return name, langs, true
}

type importRequestPayload struct {
	Name      string             `json:"name"`
	ProjectID string             `json:"proj_id"`
	Lang      string             `json:"lang"`
	Messages  messages.KeyValues `json:"messages"`
}

type importResponsePayload struct {
	Applied int      `json:"applied"`
	Skipped []string `json:"skipped"`
}

func (h *httpHandler) handleImportTranslations(c *gin.Context) {
	var request importRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	result, err := h.messagesService.ImportTranslations(c.Request.Context(), messages.ImportRequest{
		ProjectID:   request.ProjectID,
		ProjectName: request.Name,
		Lang:        request.Lang,
		Messages:    request.Messages,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.events.Publish(ProjectEvent{
		ProjectID: result.Project.ID,
		EventType: EventMessagesImported,
		Languages: []string{request.Lang},
		Timestamp: time.Now().UTC(),
	})

	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	c.JSON(http.StatusOK, importResponsePayload{Applied: result.Applied, Skipped: skipped})
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	records, err := h.messagesService.ListMessages(c.Request.Context(), c.Query("lang"), c.Query("proj_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type editMessagePayload struct {
	ID     string `json:"id"`
	Value  string `json:"value"`
	Editor string `json:"editor"`
}

func (h *httpHandler) handleEditMessage(c *gin.Context) {
	var request editMessagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	record, err := h.messagesService.EditMessage(c.Request.Context(), request.ID, request.Value, request.Editor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.events.Publish(ProjectEvent{
		ProjectID: record.ProjectID,
		EventType: EventMessageEdited,
		Languages: []string{record.Lang},
		Keys:      []string{record.Key},
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, record)
}

type removeMessagesPayload struct {
	IDs string `json:"ids"`
}

func (h *httpHandler) handleRemoveMessages(c *gin.Context) {
	var request removeMessagesPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	removed, err := h.messagesService.DeleteMessages(c.Request.Context(), strings.Split(request.IDs, ","))
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := time.Now().UTC()
	for projectID, changed := range groupByProject(removed) {
		h.events.Publish(ProjectEvent{
			ProjectID: projectID,
			EventType: EventMessagesRemoved,
			Languages: changed.SortedLanguages(),
			Keys:      changedKeys(changed),
			Timestamp: now,
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListProjects(c *gin.Context) {
	projects, err := h.messagesService.ListProjects(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

type projectIDPayload struct {
	ProjectID string `json:"proj_id"`
}

func (h *httpHandler) handleRemoveProject(c *gin.Context) {
	var request projectIDPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.messagesService.DeleteProject(c.Request.Context(), request.ProjectID); err != nil {
		h.writeError(c, err)
		return
	}
	h.events.Publish(ProjectEvent{ProjectID: request.ProjectID, EventType: EventProjectRemoved, Timestamp: time.Now().UTC()})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleClearProject(c *gin.Context) {
	var request projectIDPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.messagesService.ClearProjectMessages(c.Request.Context(), request.ProjectID); err != nil {
		h.writeError(c, err)
		return
	}
	h.events.Publish(ProjectEvent{ProjectID: request.ProjectID, EventType: EventProjectCleared, Timestamp: time.Now().UTC()})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type projectEventPayload struct {
	ProjectID string   `json:"proj_id"`
	Languages []string `json:"languages,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	Source    string   `json:"source"`
	Timestamp int64    `json:"timestamp_s"`
}

func (h *httpHandler) handleProjectEvents(c *gin.Context) {
	projectID := strings.TrimSpace(c.Param("id"))
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_project_id"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.events.Subscribe(ctx, projectID)
	defer cleanup()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(event.EventType, projectEventPayload{
				ProjectID: event.ProjectID,
				Languages: event.Languages,
				Keys:      event.Keys,
				Source:    eventSourceBackend,
				Timestamp: event.Timestamp.Unix(),
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(eventHeartbeat, projectEventPayload{
				ProjectID: projectID,
				Source:    eventSourceBackend,
				Timestamp: tick.UTC().Unix(),
			})
			return true
		}
	})
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	status, kind := classifyError(err)
	body := gin.H{"error": kind}
	var serviceErr *messages.ServiceError
	if errors.As(err, &serviceErr) {
		body["code"] = serviceErr.Code()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, messages.ErrMissingProjectName):
		return http.StatusBadRequest, "missing_project_name"
	case errors.Is(err, messages.ErrInvalidProjectName):
		return http.StatusBadRequest, "invalid_project_name"
	case errors.Is(err, messages.ErrMissingBaseLanguage):
		return http.StatusBadRequest, "missing_base_language"
	case errors.Is(err, messages.ErrInvalidSubmission):
		return http.StatusBadRequest, "invalid_submission"
	case errors.Is(err, messages.ErrInvalidLanguage):
		return http.StatusBadRequest, "invalid_language"
	case errors.Is(err, messages.ErrMissingIdentifier):
		return http.StatusBadRequest, "missing_identifier"
	case errors.Is(err, messages.ErrMissingValue):
		return http.StatusBadRequest, "missing_value"
	case errors.Is(err, messages.ErrProjectNotFound):
		return http.StatusNotFound, "project_not_found"
	case errors.Is(err, messages.ErrMessageNotFound):
		return http.StatusNotFound, "message_not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func collectLanguages(submission messages.Submission) []string {
	langs := messages.LanguageMessages{}
	for _, path := range submission {
		for lang := range path {
			langs[lang] = nil
		}
	}
	if len(langs) == 0 {
		return nil
	}
	return langs.SortedLanguages()
}

func groupByProject(records []messages.Message) map[string]messages.LanguageMessages {
	grouped := map[string]messages.LanguageMessages{}
	for _, record := range records {
		langs, ok := grouped[record.ProjectID]
		if !ok {
			langs = messages.LanguageMessages{}
			grouped[record.ProjectID] = langs
		}
		if langs[record.Lang] == nil {
			langs[record.Lang] = messages.KeyValues{}
		}
		langs[record.Lang][record.Key] = record.Value
	}
	return grouped
}

func changedKeys(langs messages.LanguageMessages) []string {
	union := messages.KeyValues{}
	for _, values := range langs {
		for key := range values {
			union[key] = ""
		}
	}
	return union.SortedKeys()
}
