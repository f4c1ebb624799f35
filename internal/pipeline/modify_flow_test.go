package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/docpipeline/internal/annotations"
	"github.com/openvault/docpipeline/internal/modify"
)

func ptr(v float64) *float64 { return &v }

func TestModifyRemapsPagesAndAnnotations(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.seed(t, 7, "deed", "..o")
	rig.start(t, Message{DocID: 7, Slug: "deed"})

	rig.anns.Seed(7,
		[]annotations.Note{
			{ID: "n-kept", Page: 1, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)},
			{ID: "n-dropped", Page: 0, X1: ptr(0.5), Y1: ptr(0.5), X2: ptr(0.6), Y2: ptr(0.6)},
		},
		[]annotations.Section{
			{ID: "s-kept", Page: 2},
			{ID: "s-dropped", Page: 0},
		})

	// Drop page 0, keep 1-2, then append page 1 again: 3 output pages.
	msg := Message{DocID: 7, Slug: "deed", Modifications: []modify.Modification{
		{PageSpec: modify.PageSpec{{Start: 1, End: 2}, {Start: 1, End: 1}}},
	}}
	require.NoError(t, rig.queue.Publish(ctx, rig.cfg.ModifyTopic, msg.Encode()))
	rig.drive(t)

	// The first run grafted page 2 ('o' -> 'g'); the rebuilt document
	// is pages [1, 2, 1] of that.
	data, err := rig.store.ReadAll(ctx, rig.paths.Document("7", "deed"))
	require.NoError(t, err)
	assert.Equal(t, string(fakeDoc(".g.")), string(data))

	// The grafted page kept its text layer, so the reprocessing run
	// never re-ran OCR.
	assert.Equal(t, 1, rig.ocr.Calls)

	notes, err := rig.anns.Notes(ctx, 7)
	require.NoError(t, err)
	byID := map[string]annotations.Note{}
	var copies []annotations.Note
	for _, n := range notes {
		switch n.ID {
		case "n-kept", "n-dropped":
			byID[n.ID] = n
		default:
			copies = append(copies, n)
		}
	}
	// Page 1 appears at output 0 and 2; the note follows the first
	// occurrence and a copy lands on the second.
	kept := byID["n-kept"]
	assert.Equal(t, 0, kept.Page)
	assert.True(t, kept.Positioned())
	require.Len(t, copies, 1)
	assert.Equal(t, 2, copies[0].Page)
	assert.True(t, copies[0].Positioned())
	// The note on the dropped page detached.
	dropped := byID["n-dropped"]
	assert.Equal(t, 0, dropped.Page)
	assert.False(t, dropped.Positioned())

	sections, err := rig.anns.Sections(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "s-kept", sections[0].ID)
	assert.Equal(t, 1, sections[0].Page)

	// The rebuilt document completed a fresh processing run.
	assert.Equal(t, "success", rig.api.lastPatch()["status"])
	spec, err := rig.store.ReadAll(ctx, rig.paths.PageSize("7", "deed"))
	require.NoError(t, err)
	assert.Equal(t, "612x792:0-2", string(spec))
}

func TestModifyImportsForeignPages(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.seed(t, 7, "deed", ".")
	rig.seed(t, 9, "lease", "..")
	rig.start(t, Message{DocID: 7, Slug: "deed"})

	rig.anns.Seed(9,
		[]annotations.Note{
			{ID: "f-note", Page: 1, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)},
		},
		[]annotations.Section{{ID: "f-section", Page: 1}})

	msg := Message{DocID: 7, Slug: "deed", Modifications: []modify.Modification{
		{PageSpec: modify.PageSpec{{Start: 0, End: 0}}},
		{DocID: 9, Slug: "lease", PageSpec: modify.PageSpec{{Start: 1, End: 1}}},
	}}
	require.NoError(t, rig.queue.Publish(ctx, rig.cfg.ModifyTopic, msg.Encode()))
	rig.drive(t)

	data, err := rig.store.ReadAll(ctx, rig.paths.Document("7", "deed"))
	require.NoError(t, err)
	assert.Equal(t, string(fakeDoc("..")), string(data))
	assert.Equal(t, "success", rig.api.lastPatch()["status"])

	// The imported page brought copies of its annotations along.
	notes, err := rig.anns.Notes(ctx, 7)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotEqual(t, "f-note", notes[0].ID)
	assert.Equal(t, 1, notes[0].Page)
	assert.True(t, notes[0].Positioned())

	sections, err := rig.anns.Sections(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.NotEqual(t, "f-section", sections[0].ID)
	assert.Equal(t, 1, sections[0].Page)

	// The source document's own annotations are untouched.
	foreign, err := rig.anns.Notes(ctx, 9)
	require.NoError(t, err)
	require.Len(t, foreign, 1)
	assert.Equal(t, "f-note", foreign[0].ID)
	assert.Equal(t, 1, foreign[0].Page)
}

func TestModifyEmptyPlanIsFatal(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.seed(t, 7, "deed", "..")

	msg := Message{DocID: 7, Slug: "deed"}
	require.NoError(t, rig.pipeline.Handle(ctx, rig.cfg.ModifyTopic, msg.Encode()))

	assert.Equal(t, 1, rig.api.errorCount())
	running, err := rig.counters.StillProcessing(ctx, "7")
	require.NoError(t, err)
	assert.False(t, running)
}
