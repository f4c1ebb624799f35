package modify

import (
	"fmt"
	"strconv"

	"github.com/openvault/docpipeline/internal/pdf"
)

// Fetch loads the PDF bytes of a source document.
type Fetch func(docID int64) ([]byte, error)

// Assemble realizes the plan as a PDF. Consecutive targets from the
// same source document become one page collection; runs are merged in
// order and rotations are applied to the finished document.
func Assemble(plan *Plan, fetch Fetch) ([]byte, error) {
	documents := map[int64][]byte{}
	load := func(docID int64) ([]byte, error) {
		if data, ok := documents[docID]; ok {
			return data, nil
		}
		data, err := fetch(docID)
		if err != nil {
			return nil, fmt.Errorf("failed to load source document %d: %w", docID, err)
		}
		documents[docID] = data
		return data, nil
	}

	var parts [][]byte
	for start := 0; start < len(plan.Targets); {
		docID := plan.Targets[start].Source.DocID
		end := start
		for end < len(plan.Targets) && plan.Targets[end].Source.DocID == docID {
			end++
		}
		selection := make([]string, 0, end-start)
		for _, target := range plan.Targets[start:end] {
			selection = append(selection, strconv.Itoa(target.Source.Page+1))
		}
		data, err := load(docID)
		if err != nil {
			return nil, err
		}
		part, err := pdf.Collect(data, selection)
		if err != nil {
			return nil, fmt.Errorf("failed to collect pages from document %d: %w", docID, err)
		}
		parts = append(parts, part)
		start = end
	}

	assembled := parts[0]
	if len(parts) > 1 {
		merged, err := pdf.Merge(parts)
		if err != nil {
			return nil, err
		}
		assembled = merged
	}

	// Rotations group by turn count so each amount costs one pass.
	for turns := 1; turns <= 3; turns++ {
		var pages []int
		for i, target := range plan.Targets {
			if target.Rotation == turns {
				pages = append(pages, i)
			}
		}
		if len(pages) == 0 {
			continue
		}
		rotated, err := pdf.Rotate(assembled, turns, pages)
		if err != nil {
			return nil, err
		}
		assembled = rotated
	}

	return assembled, nil
}
