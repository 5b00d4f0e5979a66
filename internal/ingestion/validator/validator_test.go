package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

func TestValidatePublishRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.PublishRequest
		fields []string
	}{
		{"valid", ingestion.PublishRequest{Docset: "mimicpp", Version: "v7.1.0", Dir: "/data/html/search"}, nil},
		{"missing everything", ingestion.PublishRequest{}, []string{"docset", "version", "dir"}},
		{"path traversal", ingestion.PublishRequest{Docset: "../etc", Version: "..", Dir: "x"}, []string{"docset", "version"}},
		{"slash in version", ingestion.PublishRequest{Docset: "mimicpp", Version: "v7/rc", Dir: "x"}, []string{"version"}},
		{"long name", ingestion.PublishRequest{Docset: strings.Repeat("a", 129), Version: "v1", Dir: "x"}, []string{"docset"}},
		{"long key", ingestion.PublishRequest{Docset: "a", Version: "v1", Dir: "x", IdempotencyKey: strings.Repeat("k", 256)}, []string{"idempotency_key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePublishRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationErrorIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"version": "b", "docset": "a"}}
	assert.Equal(t, "docset: a; version: b", err.Error())
}
