package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/openvault/docpipeline/internal/pipeline"
	"github.com/openvault/docpipeline/internal/service"
)

var (
	svc     *service.Service
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the HTTP function with the framework.
	// "HandleProcessDocument" is the entry point name configured in GCP.
	functions.HTTP("HandleProcessDocument", handleProcessDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// handleProcessDocument is the HTTP front door of the pipeline. POST
// enqueues a document for processing; GET reports its remaining work.
func handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		svc, initErr = service.New(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		handleProgress(w, r)
	case http.MethodPost:
		handleEnqueue(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleEnqueue decodes the incoming JSON request and publishes it to
// the processing topic.
func handleEnqueue(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		slog.Warn("Could not read request body", "error", err)
		http.Error(w, "Bad Request: could not read body", http.StatusBadRequest)
		return
	}

	msg, err := pipeline.DecodeMessage(body)
	if err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	if err := svc.Queue.Publish(r.Context(), svc.Config.PDFProcessTopic, msg.Encode()); err != nil {
		slog.Error("Failed to publish document for processing",
			"error", err,
			"documentId", msg.DocID,
		)
		http.Error(w, "Internal Server Error: publish failed", http.StatusInternalServerError)
		return
	}

	slog.Info("Document queued for processing", "documentId", msg.DocID, "slug", msg.Slug)
	w.WriteHeader(http.StatusAccepted)
}

// handleProgress responds with the remaining-work counters for the
// document named by the "doc_id" query parameter.
func handleProgress(w http.ResponseWriter, r *http.Request) {
	docID, err := strconv.ParseInt(r.URL.Query().Get("doc_id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request: doc_id must be an integer", http.StatusBadRequest)
		return
	}

	progress, err := svc.Counters.Progress(r.Context(), strconv.FormatInt(docID, 10))
	if err != nil {
		slog.Error("Failed to read document progress", "error", err, "documentId", docID)
		http.Error(w, "Internal Server Error: progress lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(progress); err != nil {
		slog.Error("Failed to write response", "error", err, "documentId", docID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
