// Package pipeline implements the stateless document processing
// stages. Stages communicate only through object storage, the shared
// completion counters, and the message queue, so any stage can run on
// any worker and every message can be redelivered safely.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/openvault/docpipeline/internal/annotations"
	"github.com/openvault/docpipeline/internal/apiclient"
	"github.com/openvault/docpipeline/internal/config"
	"github.com/openvault/docpipeline/internal/counter"
	"github.com/openvault/docpipeline/internal/docpath"
	"github.com/openvault/docpipeline/internal/ocr"
	"github.com/openvault/docpipeline/internal/queue"
	"github.com/openvault/docpipeline/internal/storage"
)

// ErrResourceExhausted marks failures caused by transient resource
// pressure. The dispatcher retries these on the escalating timeout
// schedule instead of failing the document.
var ErrResourceExhausted = errors.New("resource exhausted")

// Converter hands a non-PDF upload off for conversion. The conversion
// re-enqueues the document as a PDF when it finishes.
type Converter interface {
	Convert(ctx context.Context, docID int64, slug, extension string) error
}

// Pipeline wires the stages to their backing services.
type Pipeline struct {
	cfg         config.Config
	store       storage.ObjectStore
	queue       queue.MessageQueue
	counters    counter.Store
	engine      Engine
	ocr         ocr.Engine
	api         *apiclient.Client
	annotations annotations.Store
	converter   Converter
	paths       docpath.Paths
}

// New assembles a pipeline from its dependencies.
func New(cfg config.Config, store storage.ObjectStore, q queue.MessageQueue,
	counters counter.Store, engine Engine, ocrEngine ocr.Engine,
	api *apiclient.Client, anns annotations.Store, converter Converter) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		queue:       q,
		counters:    counters,
		engine:      engine,
		ocr:         ocrEngine,
		api:         api,
		annotations: anns,
		converter:   converter,
		paths:       docpath.Paths{Bucket: cfg.DocumentBucket},
	}
}

type stageFunc func(ctx context.Context, logCtx *slog.Logger, msg Message) error

// Continuation is the remaining work of a stage that bounds its own
// invocation time. The stage returns it instead of looping; the
// dispatcher re-enqueues it as a fresh message.
type Continuation struct {
	Topic   string
	Message Message
}

// stage is one dispatchable pipeline step. Entry stages start a new
// processing run; all others drop messages for runs that ended.
type stage struct {
	run   stageFunc
	entry bool
}

func (p *Pipeline) stages() map[string]stage {
	return map[string]stage{
		p.cfg.PDFProcessTopic:   {run: p.ProcessDocument, entry: true},
		p.cfg.PageCacheTopic:    {run: p.CacheAndIndex},
		p.cfg.ImageExtractTopic: {run: p.ExtractImages},
		p.cfg.OCRTopic:          {run: p.OCRPage},
		p.cfg.AssembleTextTopic: {run: p.AssembleText},
		p.cfg.RedactTopic:       {run: p.Redact, entry: true},
		p.cfg.ModifyTopic:       {run: p.Modify, entry: true},
	}
}

func docIDKey(docID int64) string {
	return strconv.FormatInt(docID, 10)
}

// Handle dispatches one message to its stage, enforcing the run guard
// and the escalating timeout schedule. It returns an error only for
// infrastructure failures that warrant queue-level redelivery;
// document-level failures are reported through the API and absorbed.
func (p *Pipeline) Handle(ctx context.Context, topic string, body []byte) error {
	st, ok := p.stages()[topic]
	if !ok {
		return fmt.Errorf("no stage registered for topic %q", topic)
	}

	msg, err := DecodeMessage(body)
	if err != nil {
		slog.Error("Dropping undecodable message.", "topic", topic, "error", err)
		return nil
	}

	logCtx := slog.With("topic", topic, "documentId", msg.DocID, "slug", msg.Slug, "runCount", msg.RunCount)

	if st.entry {
		if err := p.counters.SetRunning(ctx, docIDKey(msg.DocID)); err != nil {
			return fmt.Errorf("failed to mark document running: %w", err)
		}
	} else {
		running, err := p.counters.StillProcessing(ctx, docIDKey(msg.DocID))
		if err != nil {
			return fmt.Errorf("failed to check run state: %w", err)
		}
		if !running {
			logCtx.Info("Dropping message for ended run.")
			return nil
		}
	}

	timeout := p.cfg.Timeouts[len(p.cfg.Timeouts)-1]
	if msg.RunCount < len(p.cfg.Timeouts) {
		timeout = p.cfg.Timeouts[msg.RunCount]
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = st.run(stageCtx, logCtx, msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrResourceExhausted):
		return p.retryOrFail(ctx, logCtx, topic, msg, err)
	default:
		return p.failDocument(ctx, logCtx, msg, err)
	}
}

// retryOrFail republishes the message with the next, longer timeout,
// or fails the document once the schedule is exhausted.
func (p *Pipeline) retryOrFail(ctx context.Context, logCtx *slog.Logger, topic string, msg Message, cause error) error {
	if msg.RunCount+1 >= len(p.cfg.Timeouts) {
		return p.failDocument(ctx, logCtx, msg, fmt.Errorf("timed out after %d attempts: %w", msg.RunCount+1, cause))
	}
	msg.RunCount++
	logCtx.Warn("Stage timed out, republishing with longer timeout.", "nextRunCount", msg.RunCount, "error", cause)
	if err := p.queue.Publish(ctx, topic, msg.Encode()); err != nil {
		return fmt.Errorf("failed to republish for retry: %w", err)
	}
	return nil
}

// failDocument reports a fatal processing error, tears down the run's
// counters, and absorbs the message.
func (p *Pipeline) failDocument(ctx context.Context, logCtx *slog.Logger, msg Message, cause error) error {
	logCtx.Error("Document processing failed.", "error", cause)
	if err := p.api.ReportError(ctx, msg.DocID, cause.Error(), true); err != nil {
		logCtx.Error("CRITICAL: Failed to report processing error to API.", "reportError", err)
	}
	if err := p.counters.CleanUp(ctx, docIDKey(msg.DocID)); err != nil {
		logCtx.Error("Failed to clean up counters after failure.", "cleanupError", err)
	}
	return nil
}

// publish sends a message with its run count reset: a fresh stage gets
// a fresh timeout schedule.
func (p *Pipeline) publish(ctx context.Context, topic string, msg Message) error {
	msg.RunCount = 0
	if err := p.queue.Publish(ctx, topic, msg.Encode()); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
