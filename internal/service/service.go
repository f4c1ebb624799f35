// Package service wires the pipeline to its production backends and
// adapts it to the Cloud Functions runtime. Each deployed function is
// one stage; they all share this bootstrap.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/openvault/docpipeline/internal/annotations"
	"github.com/openvault/docpipeline/internal/apiclient"
	"github.com/openvault/docpipeline/internal/config"
	"github.com/openvault/docpipeline/internal/counter"
	"github.com/openvault/docpipeline/internal/ocr"
	"github.com/openvault/docpipeline/internal/pipeline"
	"github.com/openvault/docpipeline/internal/queue"
	"github.com/openvault/docpipeline/internal/storage"
)

// Service is a fully wired pipeline plus the settings the handlers
// need.
type Service struct {
	Pipeline *pipeline.Pipeline
	Config   config.Config
	Counters counter.Store
	Queue    queue.MessageQueue
}

// New constructs the production service.
func New(ctx context.Context) (*Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	counters := counter.NewRedisStore(counter.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword))
	engine, err := pipeline.NewPDFEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF engine: %w", err)
	}
	anns, err := annotations.NewFirestoreStore(ctx, cfg.ProjectID, "documents")
	if err != nil {
		return nil, err
	}
	converter, err := pipeline.NewWorkflowConverter(ctx, cfg.ProjectID, cfg.ConvertWorkflowLocation, cfg.ConvertWorkflowID)
	if err != nil {
		return nil, err
	}

	q := queue.NewPubSubQueue(pubsubClient)
	svc := &Service{
		Pipeline: pipeline.New(
			cfg,
			storage.NewGCSStore(gcsClient),
			q,
			counters,
			engine,
			ocr.NewTesseract(),
			apiclient.New(cfg.APICallback, cfg.ProcessingToken),
			anns,
			converter,
		),
		Config:   cfg,
		Counters: counters,
		Queue:    q,
	}
	slog.Info("Pipeline service initialized.", "bucket", cfg.DocumentBucket)
	return svc, nil
}

// messagePublishedData is the CloudEvent payload Eventarc delivers for
// a Pub/Sub message.
type messagePublishedData struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// HandleEvent unwraps a Pub/Sub CloudEvent and dispatches its message
// to the stage listening on topic.
func (s *Service) HandleEvent(ctx context.Context, topic string, e cloudevents.Event) error {
	var payload messagePublishedData
	if err := json.Unmarshal(e.Data(), &payload); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return s.Pipeline.Handle(ctx, topic, payload.Message.Data)
}
