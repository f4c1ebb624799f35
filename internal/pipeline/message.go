package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/openvault/docpipeline/internal/modify"
	"github.com/openvault/docpipeline/internal/pdf"
)

// Redaction is one region to black out, in normalized page coordinates.
type Redaction struct {
	Page int `json:"page"`
	pdf.Region
}

// Message is the body of every pipeline message. Stages ignore fields
// they don't use.
type Message struct {
	DocID     int64  `json:"doc_id"`
	Slug      string `json:"slug"`
	Extension string `json:"extension,omitempty"`

	// RunCount indexes the timeout schedule. A stage that times out is
	// republished with RunCount bumped.
	RunCount int `json:"run_count,omitempty"`

	// Pages scopes extraction and OCR batches, and partial reprocessing
	// runs after a redaction.
	Pages []int `json:"pages,omitempty"`

	// Partial marks a run that reprocesses only Pages, leaving the
	// completion counters as a prior stage initialized them.
	Partial bool `json:"partial,omitempty"`

	ForceOCR bool   `json:"force_ocr,omitempty"`
	OCRCode  string `json:"ocr_code,omitempty"`

	Redactions    []Redaction           `json:"redactions,omitempty"`
	Modifications []modify.Modification `json:"modifications,omitempty"`
}

// DecodeMessage parses a message body.
func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode pipeline message: %w", err)
	}
	if msg.DocID == 0 || msg.Slug == "" {
		return Message{}, fmt.Errorf("pipeline message missing document id or slug")
	}
	return msg, nil
}

// Encode serializes the message for publishing.
func (m Message) Encode() []byte {
	body, err := json.Marshal(m)
	if err != nil {
		// Message contains only plain data; this cannot fail.
		panic(err)
	}
	return body
}
