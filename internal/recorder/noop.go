package recorder

import (
	"context"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrigger(context.Context, *model.TriggerSignal) (string, error) {
	return "", nil
}
func (n *NoopRecorder) RecordAudit(context.Context, *model.AuditRecord) error { return nil }
func (n *NoopRecorder) RecentAudits(context.Context, string, int) ([]model.AuditRecord, error) {
	return []model.AuditRecord{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
