package pagespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrunchGroupsRunsAndSingles(t *testing.T) {
	values := []string{"612x792", "612x792", "612x792", "612x1008", "612x792"}
	assert.Equal(t, "612x792:0-2,4;612x1008:3", Crunch(values))
}

func TestCrunchSingleGroup(t *testing.T) {
	assert.Equal(t, "612x792:0-9", Crunch(repeat("612x792", 10)))
}

func TestCrunchEmpty(t *testing.T) {
	assert.Equal(t, "", Crunch(nil))
}

func TestUncrunchRoundTrip(t *testing.T) {
	values := []string{"612x792", "612x1008", "612x792", "612x792", "792x612"}
	restored, err := Uncrunch(Crunch(values))
	require.NoError(t, err)
	assert.Equal(t, values, restored)
}

func TestUncrunchMalformed(t *testing.T) {
	_, err := Uncrunch("612x792")
	assert.Error(t, err, "group without page list")
	_, err = Uncrunch("612x792:a-b")
	assert.Error(t, err)
}

func TestCrunchSpecFormatsDimensions(t *testing.T) {
	spec := []Dimensions{
		{Width: 612, Height: 792},
		{Width: 611.5, Height: 791.25},
	}
	assert.Equal(t, "612x792:0;611.5x791.25:1", CrunchSpec(spec))
}

func TestCrunchGroupsOrdersByLowestPage(t *testing.T) {
	crunched := CrunchGroups(map[string][]int{
		"612x1008": {3},
		"612x792":  {4, 0, 2, 1},
	})
	assert.Equal(t, "612x792:0-2,4;612x1008:3", crunched)
}

func TestParseFallsBackToDefaults(t *testing.T) {
	spec, err := Parse("612x792:0;banana:1")
	require.NoError(t, err)
	assert.Equal(t, Dimensions{Width: 612, Height: 792}, spec.Page(0))
	assert.Equal(t, Dimensions{Width: DefaultWidth, Height: DefaultHeight}, spec.Page(1))
	// Out of range lookups degrade to the default page size.
	assert.Equal(t, Dimensions{Width: DefaultWidth, Height: DefaultHeight}, spec.Page(99))
}

func TestDimensionsString(t *testing.T) {
	assert.Equal(t, "612x792", Dimensions{Width: 612, Height: 792}.String())
	assert.Equal(t, "611.5x791.25", Dimensions{Width: 611.5, Height: 791.25}.String())
}

func repeat(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}
