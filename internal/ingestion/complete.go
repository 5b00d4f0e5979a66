package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// LoadSnapshot opens a snapshot and decodes the whole catalog.
func LoadSnapshot(path string) (*catalog.Catalog, error) {
	r, err := snapshot.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Catalog()
}

// HandleIndexComplete returns the searcher's index-complete handler. Events
// for other docsets are ignored when docset is set; matching snapshots are
// decoded and passed to install, typically (*catalog.Loader).Set.
func HandleIndexComplete(docset string, install func(*catalog.Catalog)) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-complete-consumer")
	return func(ctx context.Context, key, value []byte) error {
		ev, err := kafka.DecodeJSON[IndexComplete](value)
		if err != nil {
			logger.Error("failed to decode index-complete event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		if docset != "" && ev.Docset != docset {
			logger.Debug("ignoring other docset", "docset", ev.Docset)
			return nil
		}
		cat, err := LoadSnapshot(ev.Snapshot)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Error("announced snapshot is missing",
					"docset", ev.Docset,
					"version", ev.Version,
					"snapshot", ev.Snapshot,
				)
				return nil
			}
			return fmt.Errorf("loading snapshot %s: %w", ev.Snapshot, err)
		}
		install(cat)
		logger.Info("snapshot installed",
			"docset", ev.Docset,
			"version", ev.Version,
			"entries", ev.Entries,
		)
		return nil
	}
}
