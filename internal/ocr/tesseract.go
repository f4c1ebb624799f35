package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	_ "image/gif"
	_ "image/png"
)

// Tesseract recognizes text with a gosseract client per call. Clients
// are not safe to share, and a function invocation processes one page,
// so per-call construction costs nothing in practice.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

func (t *Tesseract) Recognize(ctx context.Context, imageData []byte, language string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(imageData); err != nil {
		return Result{}, fmt.Errorf("failed to set OCR image: %w", err)
	}
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			return Result{}, fmt.Errorf("failed to set OCR language %q: %w", language, err)
		}
	}

	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("failed to recognize text: %w", err)
	}

	words, err := extractWords(client, imageData)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: strings.TrimSpace(text), Words: words}, nil
}

// extractWords pulls word-level boxes and normalizes them against the
// image dimensions.
func extractWords(client *gosseract.Client, imageData []byte) ([]Word, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to measure OCR image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("OCR image has zero dimension")
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get word boxes: %w", err)
	}

	w := float64(cfg.Width)
	h := float64(cfg.Height)
	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text:       text,
			X1:         float64(box.Box.Min.X) / w,
			Y1:         float64(box.Box.Min.Y) / h,
			X2:         float64(box.Box.Max.X) / w,
			Y2:         float64(box.Box.Max.Y) / h,
			Confidence: box.Confidence / 100,
		})
	}
	return words, nil
}
