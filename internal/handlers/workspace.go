package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"poster-generator-backend/internal/gemini"
	"poster-generator-backend/internal/imagecodec"
	"poster-generator-backend/internal/middleware"
	"poster-generator-backend/internal/models"
	"poster-generator-backend/internal/workflow"
)

type WorkspaceHandler struct {
	registry  *workflow.Registry
	// maxUpload caps the image request body in bytes; zero means no cap.
	maxUpload int64
	log       zerolog.Logger
}

func NewWorkspaceHandler(registry *workflow.Registry, maxUpload int64, log zerolog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{registry: registry, maxUpload: maxUpload, log: log}
}

func (h *WorkspaceHandler) workspace(c *gin.Context) *workflow.Workspace {
	return h.registry.Get(c.Request.Context(), middleware.CurrentUser(c).ID)
}

// Get godoc
// @Summary     Current workspace
// @Description Returns the caller's working image, prompt, status and latest result.
// @Tags        workspace
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.WorkspaceResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /workspace [get]
func (h *WorkspaceHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, toWorkspaceResponse(h.workspace(c).Snapshot()))
}

// UploadImage godoc
// @Summary     Upload the source image
// @Description Replaces the working image and clears the current selection.
// @Tags        workspace
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       image formData file true "Source image"
// @Success     200 {object} models.WorkspaceResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Router      /workspace/image [post]
func (h *WorkspaceHandler) UploadImage(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error:   "image too large",
				Message: fmt.Sprintf("upload must not exceed %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "image file is required", Message: err.Error()})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open image", Message: err.Error()})
		return
	}
	defer f.Close()

	declared := header.Header.Get("Content-Type")
	if declared == "application/octet-stream" {
		declared = ""
	}
	file, err := imagecodec.ReadFile(f, header.Filename, declared)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read image", Message: err.Error()})
		return
	}
	if !strings.HasPrefix(file.MIMEType, "image/") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unsupported file type", Message: "file must be an image, got " + file.MIMEType})
		return
	}

	ws := h.workspace(c)
	ws.SetImage(file)
	h.log.Debug().Str("owner_id", ws.OwnerID()).Str("filename", file.Name).Int64("size", file.Size()).Msg("Working image replaced")
	c.JSON(http.StatusOK, toWorkspaceResponse(ws.Snapshot()))
}

// SetPrompt godoc
// @Summary     Set the prompt
// @Tags        workspace
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.PromptRequest true "Prompt"
// @Success     200 {object} models.WorkspaceResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /workspace/prompt [put]
func (h *WorkspaceHandler) SetPrompt(c *gin.Context) {
	var req models.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	ws := h.workspace(c)
	ws.SetPrompt(req.Prompt)
	c.JSON(http.StatusOK, toWorkspaceResponse(ws.Snapshot()))
}

// Reset godoc
// @Summary     Start a new poster
// @Description Clears image, prompt, result and selection. History is kept.
// @Tags        workspace
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.WorkspaceResponse
// @Router      /workspace/reset [post]
func (h *WorkspaceHandler) Reset(c *gin.Context) {
	ws := h.workspace(c)
	ws.Reset()
	c.JSON(http.StatusOK, toWorkspaceResponse(ws.Snapshot()))
}

// Generate godoc
// @Summary     Generate a poster
// @Description Sends the working image and prompt to the model, stores both images and records a history entry.
// @Description When the model returns nothing the call succeeds with workspace status ERROR and no entry.
// @Tags        workspace
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.GenerateRequest false "Optional prompt override"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /workspace/generate [post]
func (h *WorkspaceHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
			return
		}
	}

	ws := h.workspace(c)
	if req.Prompt != nil {
		ws.SetPrompt(*req.Prompt)
	}

	entry, err := ws.Generate(c.Request.Context())
	if err != nil {
		c.JSON(generateStatus(err), models.ErrorResponse{Error: "generation failed", Message: err.Error()})
		return
	}

	resp := models.GenerateResponse{Workspace: toWorkspaceResponse(ws.Snapshot())}
	if entry != nil {
		e := toHistoryResponse(*entry, ws.PublicURL)
		resp.Entry = &e
	}
	c.JSON(http.StatusOK, resp)
}

func generateStatus(err error) int {
	switch {
	case workflow.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrSuperseded):
		return http.StatusConflict
	case gemini.IsRefusal(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
