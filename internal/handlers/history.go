package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"poster-generator-backend/internal/models"
	"poster-generator-backend/internal/workflow"
)

// History godoc
// @Summary     List generation history
// @Description Reloads the caller's generations from the store, newest first.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.HistoryListResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /history [get]
func (h *WorkspaceHandler) History(c *gin.Context) {
	ws := h.workspace(c)
	if err := ws.LoadHistory(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to load history", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, toHistoryList(ws))
}

// SelectHistory godoc
// @Summary     Replay a history entry
// @Description Loads the entry's original image, prompt and result back into the workspace.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Param       id path string true "History entry ID"
// @Success     200 {object} models.WorkspaceResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /history/{id}/select [post]
func (h *WorkspaceHandler) SelectHistory(c *gin.Context) {
	ws := h.workspace(c)
	err := ws.SelectHistory(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "history entry not found"})
		return
	case errors.Is(err, workflow.ErrSuperseded):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "selection superseded", Message: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to load history entry", Message: ws.Snapshot().Error})
		return
	}
	c.JSON(http.StatusOK, toWorkspaceResponse(ws.Snapshot()))
}

// DeleteHistory godoc
// @Summary     Delete a history entry
// @Description Removes both stored images and the record. Unknown ids are ignored.
// @Tags        history
// @Produce     json
// @Security    Bearer
// @Param       id path string true "History entry ID"
// @Success     200 {object} models.HistoryListResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /history/{id} [delete]
func (h *WorkspaceHandler) DeleteHistory(c *gin.Context) {
	ws := h.workspace(c)
	if err := ws.DeleteHistory(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to delete history entry", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, toHistoryList(ws))
}
