package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/openvault/docpipeline/internal/service"
)

var (
	svc     *service.Service
	once    sync.Once
	initErr error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("OCRPage", ocrPage)
}

// main is required by the Go Functions Framework.
func main() {}

// ocrPage recognizes one page per invocation, chaining itself through
// the rest of its batch.
func ocrPage(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		svc, initErr = service.New(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}
	return svc.HandleEvent(ctx, svc.Config.OCRTopic, e)
}
