package recorder

import (
	"context"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// Recorder persists trigger and decision history for later analysis.
// Nothing in the trigger or decision path reads it back.
type Recorder interface {
	RecordTrigger(ctx context.Context, sig *model.TriggerSignal) (string, error)
	// RecordAudit stores rec, assigning ID and RecordedAt when they are empty.
	RecordAudit(ctx context.Context, rec *model.AuditRecord) error
	RecentAudits(ctx context.Context, symbol string, limit int) ([]model.AuditRecord, error)
	Close() error
}
