package storage

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestClassifyUploadErr(t *testing.T) {
	wrap := func(code int) error {
		return fmt.Errorf("write to gcs failed: %w", &googleapi.Error{Code: code})
	}

	// A failed precondition means the object is already in the state a
	// conditional write demanded; the upload is settled, not broken.
	assert.Equal(t, uploadSettled, classifyUploadErr(wrap(http.StatusPreconditionFailed)))

	assert.Equal(t, uploadFatal, classifyUploadErr(wrap(http.StatusBadRequest)))
	assert.Equal(t, uploadFatal, classifyUploadErr(wrap(http.StatusForbidden)))
	assert.Equal(t, uploadFatal, classifyUploadErr(wrap(http.StatusRequestEntityTooLarge)))

	assert.Equal(t, uploadRetry, classifyUploadErr(wrap(http.StatusTooManyRequests)))
	assert.Equal(t, uploadRetry, classifyUploadErr(wrap(http.StatusInternalServerError)))
	assert.Equal(t, uploadRetry, classifyUploadErr(wrap(http.StatusServiceUnavailable)))
	assert.Equal(t, uploadRetry, classifyUploadErr(fmt.Errorf("connection reset")))
}
