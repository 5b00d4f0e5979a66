// Package validator checks docset publish requests before a job is created.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

const (
	maxNameLength = 128
	maxKeyLength  = 255
)

// Names become object-store prefixes and snapshot file names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func ValidatePublishRequest(req *ingestion.PublishRequest) error {
	errs := make(map[string]string)
	checkName(errs, "docset", req.Docset)
	checkName(errs, "version", req.Version)
	if strings.TrimSpace(req.Dir) == "" {
		errs["dir"] = "dir is required"
	}
	if len(req.IdempotencyKey) > maxKeyLength {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxKeyLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkName(errs map[string]string, field, v string) {
	switch {
	case v == "":
		errs[field] = field + " is required"
	case len(v) > maxNameLength:
		errs[field] = fmt.Sprintf("%s must be at most %d characters", field, maxNameLength)
	case v == "." || v == ".." || !namePattern.MatchString(v):
		errs[field] = field + " may only contain letters, digits, '.', '_' and '-'"
	}
}
