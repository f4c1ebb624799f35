package counter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDecrementsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 3))

	done, err := s.RegisterPageExtracted(ctx, "1", 0)
	require.NoError(t, err)
	assert.False(t, done)

	// Redelivered completion for the same page is a no-op.
	done, err = s.RegisterPageExtracted(ctx, "1", 0)
	require.NoError(t, err)
	assert.False(t, done)

	progress, err := s.Progress(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, progress.Images)
	assert.Equal(t, 2, *progress.Images)
}

func TestRegisterReportsZeroCrossingOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 2))

	done, err := s.RegisterPageOCRd(ctx, "1", 0)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = s.RegisterPageOCRd(ctx, "1", 1)
	require.NoError(t, err)
	assert.True(t, done, "final page crosses zero")

	// Duplicates after completion never re-fire the crossing.
	done, err = s.RegisterPageOCRd(ctx, "1", 1)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestImageAndTextCountersAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 1))

	done, err := s.RegisterPageExtracted(ctx, "1", 0)
	require.NoError(t, err)
	assert.True(t, done)

	extracted, err := s.PageExtracted(ctx, "1", 0)
	require.NoError(t, err)
	assert.True(t, extracted)
	ocrd, err := s.PageOCRd(ctx, "1", 0)
	require.NoError(t, err)
	assert.False(t, ocrd)
}

func TestInitializePartialPresetsCleanPages(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.InitializePartial(ctx, "1", 4, []int{1, 3}))

	progress, err := s.Progress(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, progress.Images)
	assert.Equal(t, 2, *progress.Images)
	require.NotNil(t, progress.Pages)
	assert.Equal(t, 4, *progress.Pages)

	// Clean pages already count as done.
	done, err := s.RegisterPageOCRd(ctx, "1", 0)
	require.NoError(t, err)
	assert.False(t, done, "clean page is a duplicate")

	done, err = s.RegisterPageOCRd(ctx, "1", 1)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = s.RegisterPageOCRd(ctx, "1", 3)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestInitializeResetsPriorState(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 2))
	_, err := s.RegisterPageExtracted(ctx, "1", 0)
	require.NoError(t, err)
	require.NoError(t, s.WritePageText(ctx, "1", 0, PageText{Text: "old"}))

	require.NoError(t, s.Initialize(ctx, "1", 3))
	progress, err := s.Progress(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 3, *progress.Images)
	texts, err := s.AllPageText(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestRunningLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	running, err := s.StillProcessing(ctx, "1")
	require.NoError(t, err)
	assert.False(t, running)

	require.NoError(t, s.SetRunning(ctx, "1"))
	running, err = s.StillProcessing(ctx, "1")
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, s.CleanUp(ctx, "1"))
	running, err = s.StillProcessing(ctx, "1")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestPageTextRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 2))
	require.NoError(t, s.WritePageText(ctx, "1", 0, PageText{Text: "hello"}))
	require.NoError(t, s.WritePageText(ctx, "1", 1, PageText{Text: "world", OCR: "tesseract"}))

	texts, err := s.AllPageText(ctx, "1")
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Equal(t, "hello", texts[0].Text)
	assert.Equal(t, "tesseract", texts[1].OCR)
}

func TestDimensionsAndHash(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 3))
	require.NoError(t, s.AddPageDimension(ctx, "1", "612x792", 0))
	require.NoError(t, s.AddPageDimension(ctx, "1", "612x792", 2))
	require.NoError(t, s.AddPageDimension(ctx, "1", "612x1008", 1))

	dims, err := s.PageDimensions(ctx, "1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 2}, dims["612x792"])
	assert.ElementsMatch(t, []int{1}, dims["612x1008"])

	require.NoError(t, s.SetFileHash(ctx, "1", "abc123"))
	hash, err := s.PopFileHash(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)
	hash, err = s.PopFileHash(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestCleanUpRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Initialize(ctx, "1", 2))
	require.NoError(t, s.AddPageDimension(ctx, "1", "612x792", 0))
	require.NoError(t, s.CleanUp(ctx, "1"))

	progress, err := s.Progress(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, progress.Images)
	assert.Nil(t, progress.Texts)
	assert.Nil(t, progress.Pages)
}
