package ocr

import "context"

// Canned returns scripted results keyed by recognition order. It stands
// in for Tesseract in tests.
type Canned struct {
	Results []Result
	Calls   int
}

func (c *Canned) Recognize(_ context.Context, _ []byte, _ string) (Result, error) {
	result := Result{}
	if c.Calls < len(c.Results) {
		result = c.Results[c.Calls]
	}
	c.Calls++
	return result, nil
}
