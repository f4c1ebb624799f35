package modify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/docpipeline/internal/annotations"
)

func TestPageSpecUnmarshal(t *testing.T) {
	var spec PageSpec
	require.NoError(t, json.Unmarshal([]byte(`[0, [2, 4], 1]`), &spec))
	assert.Equal(t, []int{0, 2, 3, 4, 1}, spec.Pages())
}

func TestPageSpecUnmarshalRejectsBadEntries(t *testing.T) {
	var spec PageSpec
	assert.Error(t, json.Unmarshal([]byte(`[[3, 1]]`), &spec))
	assert.Error(t, json.Unmarshal([]byte(`["x"]`), &spec))
	assert.Error(t, json.Unmarshal([]byte(`[[1, 2, 3]]`), &spec))
}

func TestPageSpecRoundTrip(t *testing.T) {
	spec := PageSpec{{Start: 0, End: 0}, {Start: 2, End: 4}}
	data, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.JSONEq(t, `[0, [2, 4]]`, string(data))
}

func TestPageSpecValidate(t *testing.T) {
	spec := PageSpec{{Start: 0, End: 2}}
	assert.NoError(t, spec.Validate(3))
	assert.Error(t, spec.Validate(2))
	assert.Error(t, PageSpec{{Start: -1, End: 0}}.Validate(3))
}

func TestBuildPlanDuplication(t *testing.T) {
	// A three page document remapped to [0, 0-2] yields four pages
	// with page zero appearing twice.
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 0, End: 0}, {Start: 0, End: 2}}},
	})
	require.NoError(t, err)
	require.Equal(t, 4, plan.PageCount())

	m := plan.PageMap()
	assert.Equal(t, []Placement{{NewPage: 0}, {NewPage: 1}}, m[Source{DocID: 7, Page: 0}])
	assert.Equal(t, []Placement{{NewPage: 2}}, m[Source{DocID: 7, Page: 1}])
	assert.Equal(t, []Placement{{NewPage: 3}}, m[Source{DocID: 7, Page: 2}])
}

func TestBuildPlanRotationAndForeignDoc(t *testing.T) {
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 1, End: 1}}, Rotation: "cc"},
		{DocID: 9, PageSpec: PageSpec{{Start: 0, End: 0}}, Rotation: "hw"},
	})
	require.NoError(t, err)
	assert.Equal(t, Target{Source: Source{DocID: 7, Page: 1}, Rotation: 1}, plan.Targets[0])
	assert.Equal(t, Target{Source: Source{DocID: 9, Page: 0}, Rotation: 2}, plan.Targets[1])
}

func TestBuildPlanRejectsEmptyAndUnknownRotation(t *testing.T) {
	_, err := BuildPlan(7, nil)
	assert.Error(t, err)

	_, err = BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 0, End: 0}}, Rotation: "flip"},
	})
	assert.Error(t, err)
}

func ptr(v float64) *float64 { return &v }

func TestAnnotationsFollowFirstOccurrence(t *testing.T) {
	// Page 1 appears twice in the output; its note moves to the first
	// occurrence and the second occurrence gets a copy.
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 1, End: 1}, {Start: 1, End: 1}, {Start: 2, End: 2}}},
	})
	require.NoError(t, err)

	changes := ApplyToAnnotations(plan, 7, []SourceAnnotations{{
		DocID: 7,
		Notes: []annotations.Note{
			{ID: "n1", Page: 1, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)},
		},
		Sections: []annotations.Section{{ID: "s1", Page: 2}},
	}})
	require.Len(t, changes.UpdatedNotes, 1)
	assert.Equal(t, "n1", changes.UpdatedNotes[0].ID)
	assert.Equal(t, 0, changes.UpdatedNotes[0].Page)
	assert.True(t, changes.UpdatedNotes[0].Positioned())

	require.Len(t, changes.CreatedNotes, 1)
	assert.Empty(t, changes.CreatedNotes[0].ID)
	assert.Equal(t, 1, changes.CreatedNotes[0].Page)
	assert.True(t, changes.CreatedNotes[0].Positioned())

	require.Len(t, changes.MovedSections, 1)
	assert.Equal(t, 2, changes.MovedSections[0].Page)
	assert.Empty(t, changes.DeletedSectionIDs)
}

func TestAnnotationCopiesRotateFromOriginal(t *testing.T) {
	// The duplicated page is rotated only at its second occurrence.
	// The copy is cut from the unrotated original, then rotated; the
	// moved note keeps its coordinates and stays independent of the
	// copy's storage.
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 0, End: 0}}},
		{PageSpec: PageSpec{{Start: 0, End: 0}}, Rotation: "cc"},
	})
	require.NoError(t, err)

	changes := ApplyToAnnotations(plan, 7, []SourceAnnotations{{
		DocID: 7,
		Notes: []annotations.Note{
			{ID: "n1", Page: 0, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)},
		},
	}})
	require.Len(t, changes.UpdatedNotes, 1)
	moved := changes.UpdatedNotes[0]
	assert.Equal(t, 0, moved.Page)
	assert.InDelta(t, 0.1, *moved.X1, 1e-9)
	assert.InDelta(t, 0.2, *moved.Y1, 1e-9)

	require.Len(t, changes.CreatedNotes, 1)
	copied := changes.CreatedNotes[0]
	assert.Equal(t, 1, copied.Page)
	assert.InDelta(t, 1-0.3, *copied.X1, 1e-9)
	assert.InDelta(t, 1-0.2, *copied.X2, 1e-9)
	assert.InDelta(t, 0.1, *copied.Y1, 1e-9)
	assert.InDelta(t, 0.4, *copied.Y2, 1e-9)

	*copied.X1 = 99
	assert.InDelta(t, 0.1, *moved.X1, 1e-9)
}

func TestForeignAnnotationsImportAsCopies(t *testing.T) {
	// Pulling a page from another document copies its annotations into
	// the target; the source document's records are left alone.
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 0, End: 0}}},
		{DocID: 9, PageSpec: PageSpec{{Start: 0, End: 0}}},
	})
	require.NoError(t, err)

	changes := ApplyToAnnotations(plan, 7, []SourceAnnotations{
		{DocID: 7},
		{
			DocID: 9,
			Notes: []annotations.Note{
				{ID: "f1", Page: 0, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)},
				{ID: "f2", Page: 1},
			},
			Sections: []annotations.Section{{ID: "fs1", Page: 0}},
		},
	})
	assert.Empty(t, changes.UpdatedNotes)
	assert.Empty(t, changes.DeletedSectionIDs)

	require.Len(t, changes.CreatedNotes, 1)
	assert.Empty(t, changes.CreatedNotes[0].ID)
	assert.Equal(t, 1, changes.CreatedNotes[0].Page)
	assert.True(t, changes.CreatedNotes[0].Positioned())

	require.Len(t, changes.CreatedSections, 1)
	assert.Empty(t, changes.CreatedSections[0].ID)
	assert.Equal(t, 1, changes.CreatedSections[0].Page)
}

func TestAnnotationsOnRemovedPages(t *testing.T) {
	// Page 0 is dropped: its note detaches to a page level note on
	// page zero, its section is deleted.
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 1, End: 2}}},
	})
	require.NoError(t, err)

	changes := ApplyToAnnotations(plan, 7, []SourceAnnotations{{
		DocID:    7,
		Notes:    []annotations.Note{{ID: "n1", Page: 0, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)}},
		Sections: []annotations.Section{{ID: "s1", Page: 0}},
	}})
	require.Len(t, changes.UpdatedNotes, 1)
	assert.Equal(t, 0, changes.UpdatedNotes[0].Page)
	assert.False(t, changes.UpdatedNotes[0].Positioned())
	assert.Equal(t, []string{"s1"}, changes.DeletedSectionIDs)
	assert.Empty(t, changes.MovedSections)
}

func TestAnnotationsRotateWithPlacement(t *testing.T) {
	plan, err := BuildPlan(7, []Modification{
		{PageSpec: PageSpec{{Start: 0, End: 0}}, Rotation: "cc"},
	})
	require.NoError(t, err)

	changes := ApplyToAnnotations(plan, 7, []SourceAnnotations{{
		DocID: 7,
		Notes: []annotations.Note{{ID: "n1", Page: 0, X1: ptr(0.1), Y1: ptr(0.2), X2: ptr(0.4), Y2: ptr(0.3)}},
	}})
	require.Len(t, changes.UpdatedNotes, 1)
	n := changes.UpdatedNotes[0]
	assert.InDelta(t, 1-0.3, *n.X1, 1e-9)
	assert.InDelta(t, 1-0.2, *n.X2, 1e-9)
	assert.InDelta(t, 0.1, *n.Y1, 1e-9)
	assert.InDelta(t, 0.4, *n.Y2, 1e-9)
}
