package handlers

import (
	"poster-generator-backend/internal/models"
	"poster-generator-backend/internal/workflow"
)

func toWorkspaceResponse(s workflow.Snapshot) models.WorkspaceResponse {
	resp := models.WorkspaceResponse{
		Status:            string(s.Status),
		Error:             s.Error,
		Prompt:            s.Prompt,
		GenerationResult:  s.Result,
		GeneratedImageURL: s.GeneratedImageURL,
		SelectedHistoryID: s.SelectedID,
	}
	if s.Image != nil {
		resp.OriginalImage = &models.ImageInfo{
			Filename: s.Image.Name,
			MimeType: s.Image.MIMEType,
			Size:     s.Image.Size,
		}
	}
	return resp
}

// toHistoryResponse adds the thumbnail, which is the generated image.
func toHistoryResponse(e models.HistoryEntry, publicURL func(string) string) models.HistoryEntryResponse {
	return models.HistoryEntryResponse{
		ID:                 e.ID,
		CreatedAt:          e.CreatedAt,
		Prompt:             e.Prompt,
		OriginalImagePath:  e.OriginalImagePath,
		GeneratedImagePath: e.GeneratedImagePath,
		GenerationResult:   e.GenerationResult,
		ThumbnailURL:       publicURL(e.GeneratedImagePath),
	}
}

func toHistoryList(ws *workflow.Workspace) models.HistoryListResponse {
	entries := ws.History()
	resp := models.HistoryListResponse{
		Entries:    make([]models.HistoryEntryResponse, 0, len(entries)),
		SelectedID: ws.Snapshot().SelectedID,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toHistoryResponse(e, ws.PublicURL))
	}
	return resp
}
