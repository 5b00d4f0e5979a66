// Package ingestion defines the request types and Kafka event schemas of
// the docset indexing pipeline: a docset is announced on docset-published,
// the indexer compiles and distributes it, and index-complete tells the
// searchers to pick up the new snapshot.
package ingestion

import "time"

// Job states recorded in the index_jobs table.
const (
	JobPending = "PENDING"
	JobIndexed = "INDEXED"
	JobFailed  = "FAILED"
)

// PublishRequest is the JSON body accepted by POST /api/v1/docsets.
type PublishRequest struct {
	Docset         string `json:"docset"`
	Version        string `json:"version"`
	Dir            string `json:"dir"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PublishResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Docset  string `json:"docset"`
	Version string `json:"version"`
}

// DocsetPublished asks the indexer to compile a generated search directory.
type DocsetPublished struct {
	JobID       string    `json:"job_id"`
	Docset      string    `json:"docset"`
	Version     string    `json:"version"`
	Dir         string    `json:"dir"`
	RequestedAt time.Time `json:"requested_at"`
}

// IndexComplete announces a snapshot that searchers can load.
type IndexComplete struct {
	JobID       string    `json:"job_id"`
	Docset      string    `json:"docset"`
	Version     string    `json:"version"`
	Snapshot    string    `json:"snapshot"`
	Files       int       `json:"files"`
	Entries     int       `json:"entries"`
	Matches     int       `json:"matches"`
	CompletedAt time.Time `json:"completed_at"`
}
