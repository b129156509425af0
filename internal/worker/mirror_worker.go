// Package worker contains the background consumer that mirrors
// transaction events to Google Sheets.
package worker

import (
	"context"
	"fmt"

	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/mirror"
)

// MirrorWorker appends every upserted transaction to the mirror sheet.
// Deletes are logged and skipped; the sheet is an append-only journal,
// not a replica.
type MirrorWorker struct {
	writer mirror.Writer
	logger *log.Logger
}

func NewMirrorWorker(writer mirror.Writer, logger *log.Logger) *MirrorWorker {
	return &MirrorWorker{
		writer: writer,
		logger: logger.WithComponent("mirror-worker"),
	}
}

// HandleEvent processes a single transaction event. Returning an error
// requeues the delivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *events.TransactionEvent) error {
	switch event.Action {
	case events.ActionUpserted:
		if event.Transaction == nil {
			w.logger.WarnContext(ctx, "upsert event without transaction payload", "owner_id", event.OwnerID)
			return nil
		}
		ref, err := w.writer.AppendTransaction(ctx, event.OwnerID, *event.Transaction)
		if err != nil {
			return fmt.Errorf("append transaction to sheet: %w", err)
		}
		w.logger.InfoContext(ctx, "mirrored transaction",
			"owner_id", event.OwnerID,
			"transaction_id", event.Transaction.ID,
			"sheets_ref", ref)
		return nil

	case events.ActionDeleted:
		w.logger.InfoContext(ctx, "skipping delete, mirror is append-only",
			"owner_id", event.OwnerID,
			"transaction_id", event.ID)
		return nil

	default:
		w.logger.WarnContext(ctx, "unknown event action, dropping", "action", event.Action)
		return nil
	}
}
