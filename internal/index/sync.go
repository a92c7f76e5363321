package index

import (
	"log/slog"

	"github.com/starford/codex/internal/checksum"
	"github.com/starford/codex/internal/models"
)

// Sync brings the index for one collection up to date with records:
//   - new/changed records (by checksum) are upserted
//   - indexed records missing from records are deleted
func Sync(db RecordIndex, collection string, records []models.Record, logger *slog.Logger) error {
	checksums, err := db.Checksums(collection)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.ID] = struct{}{}
		if checksums[rec.ID] == rec.Checksum {
			continue
		}
		if err := db.Upsert(rec); err != nil {
			logger.Warn("sync: index failed",
				slog.String("collection", collection),
				slog.String("id", rec.ID),
				slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed",
			slog.String("collection", collection),
			slog.String("id", rec.ID),
			slog.String("checksum", checksum.Short(rec.Checksum)))
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := db.Delete(collection, id); err != nil {
			logger.Warn("sync: delete failed",
				slog.String("collection", collection),
				slog.String("id", id),
				slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("collection", collection), slog.String("id", id))
		}
	}
	return nil
}
