// Package config loads the pipeline configuration from the environment.
// Every component receives its settings through an explicit Config value
// constructed once at process start; nothing reads the environment at
// call time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Getenv reads an environment variable or returns a default value.
func Getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetenvInt reads an integer environment variable or returns a default value.
func GetenvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// ImageWidth is a named rendering width for page images.
type ImageWidth struct {
	Name  string
	Width int
}

// Config carries all pipeline settings.
type Config struct {
	ProjectID string

	// Object storage
	DocumentBucket string

	// Counter store
	RedisAddr     string
	RedisPassword string

	// External document-management API
	APICallback     string
	ProcessingToken string

	// Messaging topics
	PDFProcessTopic      string
	PageCacheTopic       string
	ImageExtractTopic    string
	OCRTopic             string
	AssembleTextTopic    string
	RedactTopic          string
	ModifyTopic          string
	DocumentConvertTopic string

	// Document conversion workflow for non-PDF uploads
	ConvertWorkflowID       string
	ConvertWorkflowLocation string

	// Processing limits
	PDFSizeLimit int64
	BlockSize    int64
	ImageBatch   int
	OCRBatch     int

	// Rendered image widths, largest first. The largest is rendered
	// natively; the rest are downsampled from it.
	ImageWidths []ImageWidth
	// Index into ImageWidths of the size handed to the OCR engine.
	OCRImageIndex int

	// Default OCR language code.
	OCRLanguage string

	// Ascending per-attempt stage timeouts.
	Timeouts []time.Duration
}

// Load builds a Config from the environment, applying defaults that match
// the production deployment.
func Load() (Config, error) {
	cfg := Config{
		ProjectID:               Getenv("PROJECT_ID", ""),
		DocumentBucket:          Getenv("DOCUMENT_BUCKET", ""),
		RedisAddr:               Getenv("REDIS_PROCESSING_URL", "localhost:6379"),
		RedisPassword:           Getenv("REDIS_PROCESSING_PASSWORD", ""),
		APICallback:             Getenv("API_CALLBACK", ""),
		ProcessingToken:         Getenv("PROCESSING_TOKEN", ""),
		PDFProcessTopic:         Getenv("PDF_PROCESS_TOPIC", "pdf-process"),
		PageCacheTopic:          Getenv("PAGE_CACHE_TOPIC", "page-cache"),
		ImageExtractTopic:       Getenv("IMAGE_EXTRACT_TOPIC", "image-extraction"),
		OCRTopic:                Getenv("OCR_TOPIC", "ocr-extraction"),
		AssembleTextTopic:       Getenv("ASSEMBLE_TEXT_TOPIC", "assemble-text"),
		RedactTopic:             Getenv("REDACT_TOPIC", "redact-doc"),
		ModifyTopic:             Getenv("MODIFY_TOPIC", "modify-doc"),
		DocumentConvertTopic:    Getenv("DOCUMENT_CONVERT_TOPIC", "document-convert"),
		ConvertWorkflowID:       Getenv("CONVERT_WORKFLOW_ID", "document-conversion"),
		ConvertWorkflowLocation: Getenv("CONVERT_WORKFLOW_LOCATION", "us-central1"),
		PDFSizeLimit:            int64(GetenvInt("PDF_SIZE_LIMIT", 501*1024*1024)),
		BlockSize:               int64(GetenvInt("BLOCK_SIZE", 8*1024*1024)),
		ImageBatch:              GetenvInt("EXTRACT_IMAGE_BATCH", 55),
		OCRBatch:                GetenvInt("OCR_BATCH", 1),
		OCRImageIndex:           GetenvInt("IMAGE_EXTRACT_OCR_INDEX", 1),
		OCRLanguage:             Getenv("OCR_LANGUAGE", "eng"),
	}

	if cfg.DocumentBucket == "" {
		return Config{}, fmt.Errorf("DOCUMENT_BUCKET environment variable must be set")
	}

	widths, err := parseImageWidths(Getenv(
		"IMAGE_EXTRACT_WIDTHS", "large:1000,normal:700,small:180,thumbnail:60"))
	if err != nil {
		return Config{}, err
	}
	cfg.ImageWidths = widths
	if cfg.OCRImageIndex >= len(widths) {
		cfg.OCRImageIndex = len(widths) - 1
	}

	timeouts, err := parseTimeouts(Getenv("TIMEOUTS", "60,300,600"))
	if err != nil {
		return Config{}, err
	}
	cfg.Timeouts = timeouts

	return cfg, nil
}

func parseImageWidths(value string) ([]ImageWidth, error) {
	var widths []ImageWidth
	for _, entry := range strings.Split(value, ",") {
		name, width, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("malformed image width entry %q", entry)
		}
		n, err := strconv.Atoi(width)
		if err != nil {
			return nil, fmt.Errorf("malformed image width entry %q: %w", entry, err)
		}
		widths = append(widths, ImageWidth{Name: name, Width: n})
	}
	if len(widths) == 0 {
		return nil, fmt.Errorf("no image widths configured")
	}
	return widths, nil
}

func parseTimeouts(value string) ([]time.Duration, error) {
	var timeouts []time.Duration
	for _, entry := range strings.Split(value, ",") {
		seconds, err := strconv.Atoi(strings.TrimSpace(entry))
		if err != nil {
			return nil, fmt.Errorf("malformed timeout entry %q: %w", entry, err)
		}
		timeouts = append(timeouts, time.Duration(seconds)*time.Second)
	}
	if len(timeouts) == 0 {
		return nil, fmt.Errorf("no timeouts configured")
	}
	return timeouts, nil
}
