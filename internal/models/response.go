package models

import "time"

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    int64        `json:"expires_at,omitempty"`
	User         UserResponse `json:"user"`
}

type RegistrationResponse struct {
	Status  string `json:"status"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ImageInfo struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

type WorkspaceResponse struct {
	Status            string            `json:"status"`
	Error             string            `json:"error,omitempty"`
	Prompt            string            `json:"prompt"`
	OriginalImage     *ImageInfo        `json:"original_image,omitempty"`
	GenerationResult  *GenerationResult `json:"generation_result,omitempty"`
	GeneratedImageURL string            `json:"generated_image_url,omitempty"`
	SelectedHistoryID string            `json:"selected_history_id,omitempty"`
}

type HistoryEntryResponse struct {
	ID                 string           `json:"id"`
	CreatedAt          time.Time        `json:"created_at"`
	Prompt             string           `json:"prompt"`
	OriginalImagePath  string           `json:"original_image_path"`
	GeneratedImagePath string           `json:"generated_image_path"`
	GenerationResult   GenerationResult `json:"generation_result"`
	ThumbnailURL       string           `json:"thumbnail_url"`
}

type HistoryListResponse struct {
	Entries    []HistoryEntryResponse `json:"entries"`
	SelectedID string                 `json:"selected_id,omitempty"`
}

type GenerateResponse struct {
	Workspace WorkspaceResponse     `json:"workspace"`
	Entry     *HistoryEntryResponse `json:"entry,omitempty"`
}
