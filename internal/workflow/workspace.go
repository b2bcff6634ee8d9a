package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"poster-generator-backend/internal/gemini"
	"poster-generator-backend/internal/imagecodec"
	"poster-generator-backend/internal/models"
)

type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusLoading Status = "LOADING"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

const (
	generatedFileName = "generated-poster.png"
	generatedMIMEType = "image/png"
)

// Generator produces a poster from an image part and a prompt.
// A nil output with a nil error means the model returned nothing usable.
type Generator interface {
	Generate(ctx context.Context, part imagecodec.InlinePart, prompt string) (*gemini.Output, error)
}

// BlobStore is the image bucket.
type BlobStore interface {
	Upload(ctx context.Context, ownerID string, file *imagecodec.File) (string, error)
	Remove(ctx context.Context, paths []string)
	PublicURL(path string) string
}

// HistoryStore persists generations.
type HistoryStore interface {
	Insert(ctx context.Context, entry models.NewHistoryEntry) (*models.HistoryEntry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.HistoryEntry, error)
	DeleteByID(ctx context.Context, entry models.HistoryEntry) bool
}

// Fetcher loads a stored image back into memory.
type Fetcher interface {
	FromURL(ctx context.Context, url, filename, mimeType string) (*imagecodec.File, error)
}

type Deps struct {
	Generator Generator
	Blobs     BlobStore
	History   HistoryStore
	Fetcher   Fetcher
}

type Options struct {
	// CleanupOrphanedUploads removes already uploaded images when a later
	// step of generate fails. Off by default: such blobs are left behind.
	CleanupOrphanedUploads bool
}

// ImageMeta describes the working image without its bytes.
type ImageMeta struct {
	Name     string
	MIMEType string
	Size     int64
}

// Snapshot is a consistent copy of a workspace's visible state.
type Snapshot struct {
	Status            Status
	Error             string
	Prompt            string
	Image             *ImageMeta
	Result            *models.GenerationResult
	GeneratedImageURL string
	SelectedID        string
}

// Workspace is one user's generation workflow. All methods are safe for
// concurrent use. Network calls run without the lock held; each generate or
// select takes a request token, and only the holder of the latest token may
// change status, result or selection when it finishes.
type Workspace struct {
	ownerID string
	deps    Deps
	opts    Options
	log     zerolog.Logger

	mu           sync.Mutex
	token        uint64
	status       Status
	errMsg       string
	image        *imagecodec.File
	prompt       string
	result       *models.GenerationResult
	generatedURL string
	selectedID   string
	history      []models.HistoryEntry

	// historyRev counts local changes to history. deleted holds ids removed
	// here so a load that started earlier cannot bring them back.
	historyRev uint64
	deleted    map[string]struct{}
}

func NewWorkspace(ownerID string, deps Deps, opts Options, log zerolog.Logger) *Workspace {
	return &Workspace{
		ownerID: ownerID,
		deps:    deps,
		opts:    opts,
		log:     log.With().Str("component", "workflow").Str("owner_id", ownerID).Logger(),
		status:  StatusIdle,
		deleted: make(map[string]struct{}),
	}
}

func (w *Workspace) OwnerID() string {
	return w.ownerID
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		Status:            w.status,
		Error:             w.errMsg,
		Prompt:            w.prompt,
		GeneratedImageURL: w.generatedURL,
		SelectedID:        w.selectedID,
	}
	if w.image != nil {
		snap.Image = &ImageMeta{Name: w.image.Name, MIMEType: w.image.MIMEType, Size: w.image.Size()}
	}
	if w.result != nil {
		r := *w.result
		snap.Result = &r
	}
	return snap
}

// History returns the in-memory list, newest first.
func (w *Workspace) History() []models.HistoryEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.HistoryEntry, len(w.history))
	copy(out, w.history)
	return out
}

// PublicURL resolves a stored image path.
func (w *Workspace) PublicURL(path string) string {
	return w.deps.Blobs.PublicURL(path)
}

// clearLocked resets everything but the history list and invalidates any
// request still in flight. Caller holds w.mu.
func (w *Workspace) clearLocked() {
	w.token++
	w.image = nil
	w.prompt = ""
	w.result = nil
	w.generatedURL = ""
	w.status = StatusIdle
	w.errMsg = ""
	w.selectedID = ""
}

// Reset starts a new poster.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearLocked()
}

// SetImage clears the current selection and makes file the working image.
func (w *Workspace) SetImage(file *imagecodec.File) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearLocked()
	w.image = file
}

func (w *Workspace) SetPrompt(prompt string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prompt = prompt
}

// LoadHistory replaces the in-memory list with the store's. Entries added or
// deleted locally while the list was being read are carried over.
func (w *Workspace) LoadHistory(ctx context.Context) error {
	w.mu.Lock()
	rev := w.historyRev
	w.mu.Unlock()

	entries, err := w.deps.History.ListByOwner(ctx, w.ownerID)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to load history")
		w.mu.Lock()
		w.errMsg = userMessage(err, msgHistoryLoad)
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if rev != w.historyRev {
		entries = w.mergeLocked(entries)
	}
	w.history = entries
	return nil
}

// mergeLocked combines a loaded list with the current one, newest first.
// Caller holds w.mu.
func (w *Workspace) mergeLocked(loaded []models.HistoryEntry) []models.HistoryEntry {
	seen := make(map[string]struct{}, len(loaded))
	merged := make([]models.HistoryEntry, 0, len(loaded)+len(w.history))
	for _, e := range loaded {
		if _, gone := w.deleted[e.ID]; gone {
			continue
		}
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range w.history {
		if _, ok := seen[e.ID]; !ok {
			merged = append(merged, e)
		}
	}
	slices.SortStableFunc(merged, func(a, b models.HistoryEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return merged
}

// beginLocked issues a new request token and moves to Loading. Caller holds w.mu.
func (w *Workspace) beginLocked() uint64 {
	w.token++
	w.status = StatusLoading
	w.errMsg = ""
	w.result = nil
	w.generatedURL = ""
	return w.token
}

// fail records err as the outcome of request token. A superseded request
// only logs.
func (w *Workspace) fail(token uint64, err error, fallback string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if token != w.token {
		w.log.Debug().Err(err).Uint64("token", token).Msg("Discarding failure of superseded request")
		return
	}
	w.status = StatusError
	w.errMsg = userMessage(err, fallback)
}

// Generate runs the working image and prompt through the model, stores both
// images and records a history entry. It returns (nil, nil) when the model
// produced neither image nor text; the workspace then shows a generic error.
func (w *Workspace) Generate(ctx context.Context) (*models.HistoryEntry, error) {
	w.mu.Lock()
	image, prompt := w.image, w.prompt
	if image == nil || strings.TrimSpace(prompt) == "" {
		w.token++
		w.status = StatusError
		w.errMsg = msgMissingInput
		w.mu.Unlock()
		return nil, &ValidationError{Message: msgMissingInput}
	}
	token := w.beginLocked()
	w.mu.Unlock()

	part, err := imagecodec.ToInlinePart(image.Reader(), image.MIMEType)
	if err != nil {
		w.log.Error().Err(err).Msg("Generation process failed")
		w.fail(token, err, msgUnknown)
		return nil, err
	}

	out, err := w.deps.Generator.Generate(ctx, part, prompt)
	if err != nil {
		w.log.Error().Err(err).Msg("Generation process failed")
		w.fail(token, err, msgUnknown)
		return nil, err
	}
	if out == nil || len(out.Image.Data) == 0 {
		w.log.Warn().Msg("Model returned no image")
		w.fail(token, nil, msgNoImage)
		return nil, nil
	}

	generated := imagecodec.NewFile(generatedFileName, generatedMIMEType, out.Image.Data)
	originalPath, generatedPath, err := w.uploadPair(ctx, image, generated)
	if err != nil {
		w.log.Error().Err(err).Msg("Generation process failed")
		w.fail(token, err, msgUnknown)
		return nil, err
	}

	entry, err := w.deps.History.Insert(ctx, models.NewHistoryEntry{
		UserID:             w.ownerID,
		Prompt:             prompt,
		OriginalImagePath:  originalPath,
		GeneratedImagePath: generatedPath,
		GenerationResult:   out.Result,
	})
	if err != nil {
		w.log.Error().Err(err).Msg("Generation process failed")
		w.cleanup(ctx, originalPath, generatedPath)
		w.fail(token, err, msgUnknown)
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.history = append([]models.HistoryEntry{*entry}, w.history...)
	w.historyRev++
	if token != w.token {
		w.log.Info().Str("history_id", entry.ID).Msg("Stored result of superseded generation")
		return entry, ErrSuperseded
	}
	result := entry.GenerationResult
	w.result = &result
	w.generatedURL = w.deps.Blobs.PublicURL(entry.GeneratedImagePath)
	w.selectedID = entry.ID
	w.status = StatusSuccess
	return entry, nil
}

// uploadPair stores both images concurrently. Either both paths come back or
// an error does.
func (w *Workspace) uploadPair(ctx context.Context, original, generated *imagecodec.File) (string, string, error) {
	var originalPath, generatedPath string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := w.deps.Blobs.Upload(gctx, w.ownerID, original)
		originalPath = path
		return err
	})
	g.Go(func() error {
		path, err := w.deps.Blobs.Upload(gctx, w.ownerID, generated)
		generatedPath = path
		return err
	})
	if err := g.Wait(); err != nil {
		w.cleanup(ctx, originalPath, generatedPath)
		return "", "", err
	}
	return originalPath, generatedPath, nil
}

// cleanup removes uploads that no history row references, if enabled.
func (w *Workspace) cleanup(ctx context.Context, paths ...string) {
	var orphans []string
	for _, p := range paths {
		if p != "" {
			orphans = append(orphans, p)
		}
	}
	if len(orphans) == 0 {
		return
	}
	if !w.opts.CleanupOrphanedUploads {
		w.log.Warn().Strs("paths", orphans).Msg("Leaving unreferenced uploads in storage")
		return
	}
	w.deps.Blobs.Remove(context.WithoutCancel(ctx), orphans)
}

func (w *Workspace) find(id string) (models.HistoryEntry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.history {
		if e.ID == id {
			return e, true
		}
	}
	return models.HistoryEntry{}, false
}

// SelectHistory replays a stored generation into the workspace. Both images
// must still be retrievable.
func (w *Workspace) SelectHistory(ctx context.Context, id string) error {
	entry, ok := w.find(id)
	if !ok {
		return ErrNotFound
	}

	w.mu.Lock()
	w.clearLocked()
	token := w.beginLocked()
	w.mu.Unlock()

	originalURL := w.deps.Blobs.PublicURL(entry.OriginalImagePath)
	generatedURL := w.deps.Blobs.PublicURL(entry.GeneratedImagePath)

	var original *imagecodec.File
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := w.deps.Fetcher.FromURL(gctx, originalURL, fmt.Sprintf("original-%s.png", entry.ID), "")
		original = f
		return err
	})
	g.Go(func() error {
		_, err := w.deps.Fetcher.FromURL(gctx, generatedURL, generatedFileName, "")
		return err
	})
	if err := g.Wait(); err != nil {
		w.log.Error().Err(err).Str("history_id", entry.ID).Msg("Failed to select history item")
		w.fail(token, err, msgHistorySelect)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if token != w.token {
		return ErrSuperseded
	}
	result := entry.GenerationResult
	w.image = original
	w.prompt = entry.Prompt
	w.result = &result
	w.generatedURL = generatedURL
	w.selectedID = entry.ID
	w.status = StatusSuccess
	return nil
}

// DeleteHistory removes a stored generation. The in-memory list changes only
// when the store confirms the row is gone. Unknown ids are a no-op.
func (w *Workspace) DeleteHistory(ctx context.Context, id string) error {
	entry, ok := w.find(id)
	if !ok {
		return nil
	}

	if !w.deps.History.DeleteByID(ctx, entry) {
		w.log.Error().Str("history_id", id).Msg("Failed to delete history item")
		w.mu.Lock()
		if w.status != StatusLoading {
			w.status = StatusError
			w.errMsg = msgDeleteFailed
		}
		w.mu.Unlock()
		return ErrDeleteFailed
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.history[:0:0]
	for _, e := range w.history {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	w.history = kept
	w.historyRev++
	w.deleted[id] = struct{}{}
	if w.selectedID == id {
		w.clearLocked()
	}
	return nil
}
