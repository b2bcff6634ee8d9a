package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"poster-generator-backend/internal/gemini"
	"poster-generator-backend/internal/imagecodec"
	"poster-generator-backend/internal/logger"
	"poster-generator-backend/internal/supabase"
	"poster-generator-backend/internal/workflow"
)

type harness struct {
	gen     *fakeGenerator
	blobs   *fakeBlobs
	history *fakeHistory
	ws      *workflow.Workspace
}

func newHarness(opts workflow.Options) *harness {
	h := &harness{gen: &fakeGenerator{}, blobs: newFakeBlobs()}
	h.history = newFakeHistory(h.blobs)
	h.ws = workflow.NewWorkspace(testOwner, workflow.Deps{
		Generator: h.gen,
		Blobs:     h.blobs,
		History:   h.history,
		Fetcher:   h.blobs,
	}, opts, logger.Nop())
	return h
}

func photo() *imagecodec.File {
	return imagecodec.NewFile("photo.jpg", "image/jpeg", []byte("\xff\xd8\xff\xe0jpeg"))
}

func (h *harness) ready(prompt string) {
	h.ws.SetImage(photo())
	h.ws.SetPrompt(prompt)
}

func TestGenerate_Success(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("vintage movie poster")
	assert.Equal(t, workflow.StatusIdle, h.ws.Snapshot().Status)

	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusSuccess, snap.Status)
	assert.Empty(t, snap.Error)
	assert.Equal(t, testModel, snap.Result.Model)
	assert.Equal(t, entry.ID, snap.SelectedID)
	assert.Equal(t, publicBase+entry.GeneratedImagePath, snap.GeneratedImageURL)

	history := h.ws.History()
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
	assert.Equal(t, "vintage movie poster", entry.Prompt)
	assert.Equal(t, testOwner, entry.UserID)
	assert.True(t, h.blobs.Has(entry.OriginalImagePath))
	assert.True(t, h.blobs.Has(entry.GeneratedImagePath))
	assert.NotEqual(t, entry.OriginalImagePath, entry.GeneratedImagePath)
}

func TestGenerate_NewestEntryFirst(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("first")
	first, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	h.ws.SetPrompt("second")
	second, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	history := h.ws.History()
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestGenerate_ValidationSkipsNetwork(t *testing.T) {
	cases := []struct {
		name   string
		image  bool
		prompt string
	}{
		{name: "no image", prompt: "poster"},
		{name: "empty prompt", image: true},
		{name: "blank prompt", image: true, prompt: "   "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(workflow.Options{})
			if tc.image {
				h.ws.SetImage(photo())
			}
			h.ws.SetPrompt(tc.prompt)

			entry, err := h.ws.Generate(context.Background())
			assert.Nil(t, entry)
			assert.True(t, workflow.IsValidation(err))
			assert.Equal(t, "Please upload an image and enter a prompt.", err.Error())

			snap := h.ws.Snapshot()
			assert.Equal(t, workflow.StatusError, snap.Status)
			assert.Equal(t, "Please upload an image and enter a prompt.", snap.Error)
			assert.Zero(t, h.gen.Calls())
			assert.Zero(t, h.blobs.Len())
		})
	}
}

func TestGenerate_RefusalSurfacesText(t *testing.T) {
	h := newHarness(workflow.Options{})
	refusal := "I cannot make that poster.\nTry a \"safer\" prompt \\ or a caf\u00e9 scene."
	h.gen.err = &gemini.GenerationError{Refusal: refusal}
	h.ready("poster")

	entry, err := h.ws.Generate(context.Background())
	assert.Nil(t, entry)
	require.Error(t, err)
	assert.True(t, gemini.IsRefusal(err))

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusError, snap.Status)
	assert.Contains(t, snap.Error, refusal)
	assert.Empty(t, h.ws.History())
	assert.Zero(t, h.blobs.Len())
}

func TestGenerate_EmptyResponseIsNotAnError(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.gen.empty = true
	h.ready("poster")

	entry, err := h.ws.Generate(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, entry)

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusError, snap.Status)
	assert.Equal(t, "The AI did not return an image. Try refining your prompt.", snap.Error)
	assert.Empty(t, h.ws.History())
}

func TestGenerate_UploadFailureWritesNoHistory(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.blobs.failOn = "generated-poster.png"
	h.ready("poster")

	entry, err := h.ws.Generate(context.Background())
	assert.Nil(t, entry)

	var uploadErr *supabase.UploadError
	require.True(t, errors.As(err, &uploadErr))

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusError, snap.Status)
	assert.Contains(t, snap.Error, "Failed to upload image")
	assert.Empty(t, h.ws.History())
	assert.Empty(t, h.blobs.removed)
}

func TestGenerate_InsertFailureLeavesUploadsByDefault(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.history.insertErr = &supabase.StoreError{Op: "add", Err: errors.New("connection refused")}
	h.ready("poster")

	_, err := h.ws.Generate(context.Background())
	require.Error(t, err)

	assert.Equal(t, 2, h.blobs.Len())
	assert.Empty(t, h.ws.History())
	assert.Equal(t, workflow.StatusError, h.ws.Snapshot().Status)
}

func TestGenerate_InsertFailureCleansUpWhenEnabled(t *testing.T) {
	h := newHarness(workflow.Options{CleanupOrphanedUploads: true})
	h.history.insertErr = &supabase.StoreError{Op: "add", Err: errors.New("connection refused")}
	h.ready("poster")

	_, err := h.ws.Generate(context.Background())
	require.Error(t, err)

	assert.Zero(t, h.blobs.Len())
	assert.Len(t, h.blobs.removed, 2)
}

func TestGenerate_PartialUploadCleansUpWhenEnabled(t *testing.T) {
	h := newHarness(workflow.Options{CleanupOrphanedUploads: true})
	h.blobs.failOn = "generated-poster.png"
	h.ready("poster")

	_, err := h.ws.Generate(context.Background())
	require.Error(t, err)
	assert.Zero(t, h.blobs.Len())
}

func TestGenerate_SupersededResultDoesNotOverwrite(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.gen.block = make(chan struct{})
	h.gen.started = make(chan struct{})
	h.ready("slow")

	type outcome struct {
		id  string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		entry, err := h.ws.Generate(context.Background())
		o := outcome{err: err}
		if entry != nil {
			o.id = entry.ID
		}
		done <- o
	}()
	<-h.gen.started

	h.ws.SetPrompt("fast")
	fast, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	close(h.gen.block)
	slow := <-done
	assert.ErrorIs(t, slow.err, workflow.ErrSuperseded)
	assert.NotEmpty(t, slow.id)

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusSuccess, snap.Status)
	assert.Equal(t, fast.ID, snap.SelectedID)
	assert.Equal(t, publicBase+fast.GeneratedImagePath, snap.GeneratedImageURL)
	assert.Len(t, h.ws.History(), 2)
}

func TestGenerate_ResetDiscardsInFlightFailure(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.gen.block = make(chan struct{})
	h.gen.started = make(chan struct{})
	h.gen.err = errors.New("deadline exceeded")
	h.ready("poster")

	done := make(chan error, 1)
	go func() {
		_, err := h.ws.Generate(context.Background())
		done <- err
	}()
	<-h.gen.started

	h.ws.Reset()
	close(h.gen.block)
	require.Error(t, <-done)

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusIdle, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestGenerate_ValidationFailureSupersedesInFlight(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.gen.block = make(chan struct{})
	h.gen.started = make(chan struct{})
	h.ready("slow")

	done := make(chan error, 1)
	go func() {
		_, err := h.ws.Generate(context.Background())
		done <- err
	}()
	<-h.gen.started

	h.ws.SetPrompt("  ")
	_, err := h.ws.Generate(context.Background())
	require.True(t, workflow.IsValidation(err))

	close(h.gen.block)
	assert.ErrorIs(t, <-done, workflow.ErrSuperseded)

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusError, snap.Status)
	assert.Equal(t, "Please upload an image and enter a prompt.", snap.Error)
	assert.Empty(t, snap.SelectedID)
	assert.Len(t, h.ws.History(), 1)
}

func TestSelectHistory_ReplaysEntry(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("vintage movie poster")
	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)
	h.ws.Reset()

	require.NoError(t, h.ws.SelectHistory(context.Background(), entry.ID))

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusSuccess, snap.Status)
	assert.Equal(t, "vintage movie poster", snap.Prompt)
	assert.Equal(t, entry.ID, snap.SelectedID)
	assert.Equal(t, testModel, snap.Result.Model)
	require.NotNil(t, snap.Image)
	assert.Equal(t, "original-"+entry.ID+".png", snap.Image.Name)
	assert.Equal(t, "image/jpeg", snap.Image.MIMEType)
}

func TestSelectHistory_MissingBlob(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("poster")
	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	h.blobs.Remove(context.Background(), []string{entry.GeneratedImagePath})

	err = h.ws.SelectHistory(context.Background(), entry.ID)
	var fetchErr *imagecodec.FetchError
	require.True(t, errors.As(err, &fetchErr))

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusError, snap.Status)
	assert.NotEmpty(t, snap.Error)
	assert.Len(t, h.ws.History(), 1)
}

func TestSelectHistory_UnknownID(t *testing.T) {
	h := newHarness(workflow.Options{})
	assert.ErrorIs(t, h.ws.SelectHistory(context.Background(), "missing"), workflow.ErrNotFound)
	assert.Equal(t, workflow.StatusIdle, h.ws.Snapshot().Status)
}

func TestDeleteHistory_RemovesSelectedEntry(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("poster")
	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ws.DeleteHistory(context.Background(), entry.ID))

	assert.Empty(t, h.ws.History())
	assert.Zero(t, h.blobs.Len())
	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusIdle, snap.Status)
	assert.Empty(t, snap.SelectedID)
	assert.Nil(t, snap.Image)
}

func TestDeleteHistory_KeepsUnrelatedSelection(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("first")
	first, err := h.ws.Generate(context.Background())
	require.NoError(t, err)
	h.ws.SetPrompt("second")
	second, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ws.DeleteHistory(context.Background(), first.ID))

	assert.Len(t, h.ws.History(), 1)
	assert.Equal(t, second.ID, h.ws.Snapshot().SelectedID)
}

func TestDeleteHistory_Twice(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("poster")
	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ws.DeleteHistory(context.Background(), entry.ID))
	require.NoError(t, h.ws.DeleteHistory(context.Background(), entry.ID))
	assert.Equal(t, 1, h.history.deletes)
}

func TestDeleteHistory_StoreFailureKeepsEntry(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("poster")
	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)
	h.history.deleteOK = false

	err = h.ws.DeleteHistory(context.Background(), entry.ID)
	assert.ErrorIs(t, err, workflow.ErrDeleteFailed)

	assert.Len(t, h.ws.History(), 1)
	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusError, snap.Status)
	assert.Equal(t, "Could not delete history item.", snap.Error)
}

func TestLoadHistory(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("poster")
	_, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	fresh := workflow.NewWorkspace(testOwner, workflow.Deps{
		Generator: h.gen, Blobs: h.blobs, History: h.history, Fetcher: h.blobs,
	}, workflow.Options{}, logger.Nop())
	require.NoError(t, fresh.LoadHistory(context.Background()))
	assert.Len(t, fresh.History(), 1)

	h.history.listErr = &supabase.StoreError{Op: "list", Err: errors.New("timeout")}
	require.Error(t, fresh.LoadHistory(context.Background()))
	assert.Contains(t, fresh.Snapshot().Error, "timeout")
	assert.Len(t, fresh.History(), 1)
}

func TestLoadHistory_KeepsEntryAddedDuringLoad(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.history.listHold = make(chan struct{})
	h.history.listing = make(chan struct{})
	h.ready("poster")

	loaded := make(chan error, 1)
	go func() { loaded <- h.ws.LoadHistory(context.Background()) }()
	<-h.history.listing

	entry, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	close(h.history.listHold)
	require.NoError(t, <-loaded)

	history := h.ws.History()
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
	assert.Equal(t, entry.ID, h.ws.Snapshot().SelectedID)
}

func TestLoadHistory_DoesNotRestoreEntryDeletedDuringLoad(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("first")
	first, err := h.ws.Generate(context.Background())
	require.NoError(t, err)
	h.ws.SetPrompt("second")
	second, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	h.history.listHold = make(chan struct{})
	h.history.listing = make(chan struct{})
	loaded := make(chan error, 1)
	go func() { loaded <- h.ws.LoadHistory(context.Background()) }()
	<-h.history.listing

	require.NoError(t, h.ws.DeleteHistory(context.Background(), first.ID))

	close(h.history.listHold)
	require.NoError(t, <-loaded)

	history := h.ws.History()
	require.Len(t, history, 1)
	assert.Equal(t, second.ID, history[0].ID)
}

func TestSetImage_ClearsSelection(t *testing.T) {
	h := newHarness(workflow.Options{})
	h.ready("poster")
	_, err := h.ws.Generate(context.Background())
	require.NoError(t, err)

	h.ws.SetImage(imagecodec.NewFile("other.png", "image/png", pngBytes))

	snap := h.ws.Snapshot()
	assert.Equal(t, workflow.StatusIdle, snap.Status)
	assert.Empty(t, snap.Prompt)
	assert.Empty(t, snap.SelectedID)
	assert.Nil(t, snap.Result)
	assert.Equal(t, "other.png", snap.Image.Name)
	assert.Len(t, h.ws.History(), 1)
}
