package shared

import (
	"context"
	"fmt"

	"github.com/erp/settlement/internal/domain/audit"
	"github.com/google/uuid"
)

// RecordAudit builds an audit entry and writes it through sink
func RecordAudit(ctx context.Context, sink audit.Sink, action audit.Action, entityType string,
	entityID uuid.UUID, actor, reason string, details map[string]any) error {
	entry, err := audit.NewEntry(action, entityType, entityID, actor, reason, details)
	if err != nil {
		return err
	}
	if err := sink.Record(ctx, entry); err != nil {
		return fmt.Errorf("record %s audit: %w", action, err)
	}
	return nil
}
