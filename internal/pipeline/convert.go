package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowConverter triggers the document conversion workflow, which
// turns office formats into PDF and re-enqueues the document.
type WorkflowConverter struct {
	client    *executions.Client
	projectID string
	location  string
	workflow  string
}

func NewWorkflowConverter(ctx context.Context, projectID, location, workflow string) (*WorkflowConverter, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowConverter{
		client:    client,
		projectID: projectID,
		location:  location,
		workflow:  workflow,
	}, nil
}

func (c *WorkflowConverter) Convert(ctx context.Context, docID int64, slug, extension string) error {
	payload, err := json.Marshal(map[string]any{
		"documentId": docID,
		"slug":       slug,
		"extension":  extension,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", c.projectID, c.location, c.workflow),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	if _, err := c.client.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger conversion workflow: %w", err)
	}
	return nil
}

func (c *WorkflowConverter) Close() error {
	return c.client.Close()
}

// MemConverter records conversion requests for tests.
type MemConverter struct {
	mu       sync.Mutex
	Requests []string
}

func (c *MemConverter) Convert(_ context.Context, docID int64, slug, extension string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, fmt.Sprintf("%d/%s.%s", docID, slug, extension))
	return nil
}
