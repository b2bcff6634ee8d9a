package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	postgrest "github.com/supabase-community/postgrest-go"
	"poster-generator-backend/internal/models"
)

const generationsTable = "generations"

// BlobRemover releases stored images. Removal is best-effort.
type BlobRemover interface {
	Remove(ctx context.Context, paths []string)
}

// generationRow is the snake_case shape of a row in the generations table.
type generationRow struct {
	ID                 string                  `json:"id,omitempty"`
	UserID             string                  `json:"user_id"`
	CreatedAt          *time.Time              `json:"created_at,omitempty"`
	Prompt             string                  `json:"prompt"`
	OriginalImagePath  string                  `json:"original_image_path"`
	GeneratedImagePath string                  `json:"generated_image_path"`
	GenerationResult   models.GenerationResult `json:"generation_result"`
}

// toRow maps an entry to its row form. id and created_at are left for the
// database to assign.
func toRow(e models.NewHistoryEntry) generationRow {
	return generationRow{
		UserID:             e.UserID,
		Prompt:             e.Prompt,
		OriginalImagePath:  e.OriginalImagePath,
		GeneratedImagePath: e.GeneratedImagePath,
		GenerationResult:   e.GenerationResult,
	}
}

func fromRow(r generationRow) models.HistoryEntry {
	entry := models.HistoryEntry{
		ID:                 r.ID,
		UserID:             r.UserID,
		Prompt:             r.Prompt,
		OriginalImagePath:  r.OriginalImagePath,
		GeneratedImagePath: r.GeneratedImagePath,
		GenerationResult:   r.GenerationResult,
	}
	if r.CreatedAt != nil {
		entry.CreatedAt = *r.CreatedAt
	}
	return entry
}

type HistoryStore struct {
	client *Client
	blobs  BlobRemover
	log    zerolog.Logger
}

func NewHistoryStore(client *Client, blobs BlobRemover, log zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		client: client,
		blobs:  blobs,
		log:    log.With().Str("component", "history").Logger(),
	}
}

// Insert writes entry and returns the stored record with its server-assigned
// id and created_at.
func (h *HistoryStore) Insert(ctx context.Context, entry models.NewHistoryEntry) (*models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "add", Err: err}
	}

	data, _, err := h.client.From(ctx, generationsTable).
		Insert(toRow(entry), false, "", "representation", "").
		Execute()
	if err != nil {
		h.log.Error().Err(err).Str("user_id", entry.UserID).Msg("error adding generation")
		return nil, &StoreError{Op: "add", Err: err}
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, &StoreError{Op: "add", Err: err}
	}
	if len(rows) == 0 {
		return nil, &StoreError{Op: "add", Err: fmt.Errorf("no generation record returned")}
	}

	stored := fromRow(rows[0])
	return &stored, nil
}

// ListByOwner returns ownerID's generations, newest first.
func (h *HistoryStore) ListByOwner(ctx context.Context, ownerID string) ([]models.HistoryEntry, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrAuthRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	data, _, err := h.client.From(ctx, generationsTable).
		Select("*", "", false).
		Eq("user_id", ownerID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		h.log.Error().Err(err).Str("user_id", ownerID).Msg("error getting all generations")
		return nil, &StoreError{Op: "list", Err: err}
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, fromRow(r))
	}
	return entries, nil
}

// DeleteByID releases both images (ignoring failures) and then deletes the
// row. It reports false only when the row deletion fails.
func (h *HistoryStore) DeleteByID(ctx context.Context, entry models.HistoryEntry) bool {
	paths := make([]string, 0, 2)
	for _, p := range []string{entry.OriginalImagePath, entry.GeneratedImagePath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if h.blobs != nil {
		h.blobs.Remove(ctx, paths)
	}

	if err := ctx.Err(); err != nil {
		h.log.Error().Err(err).Str("id", entry.ID).Msg("error deleting generation record")
		return false
	}

	_, _, err := h.client.From(ctx, generationsTable).
		Delete("", "").
		Eq("id", entry.ID).
		Execute()
	if err != nil {
		h.log.Error().Err(err).Str("id", entry.ID).Msg("error deleting generation record")
		return false
	}
	return true
}

func decodeRows(data []byte) ([]generationRow, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	var rows []generationRow
	if strings.HasPrefix(trimmed, "{") {
		var row generationRow
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("failed to parse generation: %w", err)
		}
		return []generationRow{row}, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse generations: %w", err)
	}
	return rows, nil
}
