package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"poster-generator-backend/internal/gemini"
	"poster-generator-backend/internal/imagecodec"
	"poster-generator-backend/internal/models"
	"poster-generator-backend/internal/supabase"
)

const (
	testModel  = "gemini-2.5-flash-image-preview"
	testOwner  = "user-1"
	publicBase = "https://cdn.test/public/"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nposter")

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	empty bool

	// block, when set, holds the first call until released.
	block   chan struct{}
	started chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, part imagecodec.InlinePart, prompt string) (*gemini.Output, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()

	if first && g.block != nil {
		close(g.started)
		<-g.block
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.empty {
		return nil, nil
	}
	return &gemini.Output{
		Result: models.GenerationResult{Model: testModel, FinishReason: "STOP"},
		Image:  imagecodec.InlinePart{MIMEType: "image/png", Data: pngBytes},
	}, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	failOn  string
	removed []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Upload(ctx context.Context, ownerID string, file *imagecodec.File) (string, error) {
	if ownerID == "" {
		return "", supabase.ErrAuthRequired
	}
	if b.failOn != "" && file.Name == b.failOn {
		return "", &supabase.UploadError{Err: errors.New("bucket unavailable")}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	path := fmt.Sprintf("%s/%d.%s", ownerID, b.seq, file.Extension())
	b.objects[path] = file.Data
	return path, nil
}

func (b *fakeBlobs) Remove(ctx context.Context, paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range paths {
		delete(b.objects, p)
		b.removed = append(b.removed, p)
	}
}

func (b *fakeBlobs) PublicURL(path string) string {
	return publicBase + path
}

func (b *fakeBlobs) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func (b *fakeBlobs) Has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

// FromURL serves the fake bucket back, so it also acts as the Fetcher.
func (b *fakeBlobs) FromURL(ctx context.Context, url, filename, mimeType string) (*imagecodec.File, error) {
	b.mu.Lock()
	data, ok := b.objects[strings.TrimPrefix(url, publicBase)]
	b.mu.Unlock()
	if !ok {
		return nil, &imagecodec.FetchError{URL: url, StatusCode: 404}
	}
	return imagecodec.NewFile(filename, mimeType, data), nil
}

type fakeHistory struct {
	mu        sync.Mutex
	rows      []models.HistoryEntry
	seq       int
	insertErr error
	listErr   error
	deleteOK  bool
	deletes   int
	blobs     *fakeBlobs

	// listHold, when set, holds ListByOwner after it has read the rows.
	listHold chan struct{}
	listing  chan struct{}
}

func newFakeHistory(blobs *fakeBlobs) *fakeHistory {
	return &fakeHistory{deleteOK: true, blobs: blobs}
}

func (h *fakeHistory) Insert(ctx context.Context, e models.NewHistoryEntry) (*models.HistoryEntry, error) {
	if h.insertErr != nil {
		return nil, h.insertErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	entry := models.HistoryEntry{
		ID:                 fmt.Sprintf("gen-%d", h.seq),
		UserID:             e.UserID,
		CreatedAt:          time.Now(),
		Prompt:             e.Prompt,
		OriginalImagePath:  e.OriginalImagePath,
		GeneratedImagePath: e.GeneratedImagePath,
		GenerationResult:   e.GenerationResult,
	}
	h.rows = append([]models.HistoryEntry{entry}, h.rows...)
	return &entry, nil
}

func (h *fakeHistory) ListByOwner(ctx context.Context, ownerID string) ([]models.HistoryEntry, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	h.mu.Lock()
	var out []models.HistoryEntry
	for _, r := range h.rows {
		if r.UserID == ownerID {
			out = append(out, r)
		}
	}
	hold := h.listHold
	h.mu.Unlock()

	if hold != nil {
		close(h.listing)
		<-hold
	}
	return out, nil
}

func (h *fakeHistory) DeleteByID(ctx context.Context, entry models.HistoryEntry) bool {
	h.blobs.Remove(ctx, []string{entry.OriginalImagePath, entry.GeneratedImagePath})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletes++
	if !h.deleteOK {
		return false
	}
	kept := h.rows[:0]
	for _, r := range h.rows {
		if r.ID != entry.ID {
			kept = append(kept, r)
		}
	}
	h.rows = kept
	return true
}
