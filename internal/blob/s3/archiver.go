package s3blob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

// receipt is the archived JSON document for one terminal operation.
type receipt struct {
	Operation *domain.Operation       `json:"operation"`
	Status    string                  `json:"status"`
	Positions []domain.MintedPosition `json:"positions,omitempty"`
	Error     string                  `json:"error,omitempty"`
	StartedAt time.Time               `json:"startedAt"`
	EndedAt   time.Time               `json:"endedAt"`
}

// Archiver writes terminal operation receipts to object storage, keyed by
// year/month so receipts stay browsable by period.
type Archiver struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewArchiver creates an Archiver on top of a BlobWriter.
func NewArchiver(writer domain.BlobWriter, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOutcome uploads the receipt for a finished run. The archive is best
// effort from the pipeline's point of view; the caller decides whether a
// failed upload matters.
func (a *Archiver) ArchiveOutcome(ctx context.Context, op *domain.Operation, outcome domain.Outcome) (string, error) {
	doc := receipt{
		Operation: op,
		Status:    string(outcome.Status),
		Positions: outcome.Positions,
		StartedAt: outcome.StartedAt,
		EndedAt:   outcome.FinishedAt,
	}
	if outcome.Err != nil {
		doc.Error = outcome.Err.Error()
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal receipt for %s: %w", outcome.OperationID, err)
	}

	key := fmt.Sprintf("operations/%s/%s.json",
		outcome.FinishedAt.UTC().Format("2006/01"),
		outcome.OperationID,
	)
	location, err := a.writer.Write(ctx, key, "application/json", payload)
	if err != nil {
		return "", err
	}

	a.logger.Info("operation receipt archived",
		slog.String("operation_id", outcome.OperationID),
		slog.String("location", location),
	)
	return location, nil
}
