package models

import "time"

// UsageMetadata mirrors the token counters reported by the model. Each
// counter is optional on the wire.
type UsageMetadata struct {
	PromptTokenCount     *int32 `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount *int32 `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      *int32 `json:"totalTokenCount,omitempty"`
}

// GenerationResult is the metadata kept for a generated poster. The image
// bytes are stored separately and referenced by path.
type GenerationResult struct {
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	FinishReason  string         `json:"finishReason,omitempty"`
	Model         string         `json:"model"`
}

// HistoryEntry is one persisted generation. ID and CreatedAt are assigned by
// the store.
type HistoryEntry struct {
	ID                 string
	UserID             string
	CreatedAt          time.Time
	Prompt             string
	OriginalImagePath  string
	GeneratedImagePath string
	GenerationResult   GenerationResult
}

// NewHistoryEntry is a HistoryEntry before the store has assigned ID and CreatedAt.
type NewHistoryEntry struct {
	UserID             string
	Prompt             string
	OriginalImagePath  string
	GeneratedImagePath string
	GenerationResult   GenerationResult
}

// User is the identity handle returned by the auth provider.
type User struct {
	ID    string
	Email string
}

type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	User         User
}
