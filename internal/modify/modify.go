// Package modify plans and applies page-level edits to a document:
// reordering, duplication, deletion, rotation, and importing pages
// from other documents. A plan is the ordered list of output pages;
// the page map derived from it drives both PDF assembly and the
// annotation fix-up afterwards.
package modify

import (
	"encoding/json"
	"fmt"
)

// angleTable maps the wire names for rotations to clockwise quarter
// turns.
var angleTable = map[string]int{
	"":    0,
	"cc":  1,
	"hw":  2,
	"ccw": 3,
}

// QuarterTurns translates a rotation name. Unknown names are an error.
func QuarterTurns(name string) (int, error) {
	turns, ok := angleTable[name]
	if !ok {
		return 0, fmt.Errorf("unknown rotation %q", name)
	}
	return turns, nil
}

// PageRange is an inclusive 0-based run of pages.
type PageRange struct {
	Start int
	End   int
}

// PageSpec selects pages in order. On the wire it is a JSON array
// mixing bare page numbers and [start, end] pairs, e.g. [0, [2, 4], 1].
type PageSpec []PageRange

func (s *PageSpec) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("page spec must be an array: %w", err)
	}
	spec := make(PageSpec, 0, len(raw))
	for _, item := range raw {
		var page int
		if err := json.Unmarshal(item, &page); err == nil {
			spec = append(spec, PageRange{Start: page, End: page})
			continue
		}
		var pair []int
		if err := json.Unmarshal(item, &pair); err != nil || len(pair) != 2 {
			return fmt.Errorf("page spec entry %s must be a page or a [start, end] pair", item)
		}
		if pair[0] > pair[1] {
			return fmt.Errorf("page spec range [%d, %d] is inverted", pair[0], pair[1])
		}
		spec = append(spec, PageRange{Start: pair[0], End: pair[1]})
	}
	*s = spec
	return nil
}

func (s PageSpec) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(s))
	for _, r := range s {
		if r.Start == r.End {
			out = append(out, r.Start)
		} else {
			out = append(out, []int{r.Start, r.End})
		}
	}
	return json.Marshal(out)
}

// Pages expands the page spec into the ordered page list.
func (s PageSpec) Pages() []int {
	var pages []int
	for _, r := range s {
		for p := r.Start; p <= r.End; p++ {
			pages = append(pages, p)
		}
	}
	return pages
}

// Validate checks every referenced page exists in a document of
// pageCount pages.
func (s PageSpec) Validate(pageCount int) error {
	for _, r := range s {
		if r.Start < 0 || r.End >= pageCount {
			return fmt.Errorf("page spec range [%d, %d] outside document of %d pages", r.Start, r.End, pageCount)
		}
	}
	return nil
}

// Modification is one entry of a modify request: a page selection from
// a source document with an optional rotation applied to every
// selected page. A zero DocID means the document being modified.
type Modification struct {
	DocID    int64    `json:"id,omitempty"`
	Slug     string   `json:"slug,omitempty"`
	PageSpec PageSpec `json:"page_spec"`
	Rotation string   `json:"rotation,omitempty"`
}

// Source identifies one page of one document.
type Source struct {
	DocID int64
	Page  int
}

// Target is one output page of the plan.
type Target struct {
	Source   Source
	Rotation int
}

// Placement records where, and with what rotation, a source page lands
// in the output.
type Placement struct {
	NewPage  int
	Rotation int
}

// Plan is the ordered list of output pages.
type Plan struct {
	Targets []Target
}

// BuildPlan expands modifications into a plan. selfID resolves entries
// that omit a source document.
func BuildPlan(selfID int64, mods []Modification) (*Plan, error) {
	plan := &Plan{}
	for i, mod := range mods {
		docID := mod.DocID
		if docID == 0 {
			docID = selfID
		}
		turns, err := QuarterTurns(mod.Rotation)
		if err != nil {
			return nil, fmt.Errorf("modification %d: %w", i, err)
		}
		for _, page := range mod.PageSpec.Pages() {
			plan.Targets = append(plan.Targets, Target{
				Source:   Source{DocID: docID, Page: page},
				Rotation: turns,
			})
		}
	}
	if len(plan.Targets) == 0 {
		return nil, fmt.Errorf("modification produces an empty document")
	}
	return plan, nil
}

// PageCount reports the size of the output document.
func (p *Plan) PageCount() int {
	return len(p.Targets)
}

// PageMap maps each source page to its output placements in order of
// appearance. Source pages absent from the map were removed.
func (p *Plan) PageMap() map[Source][]Placement {
	m := make(map[Source][]Placement)
	for i, target := range p.Targets {
		m[target.Source] = append(m[target.Source], Placement{
			NewPage:  i,
			Rotation: target.Rotation,
		})
	}
	return m
}
