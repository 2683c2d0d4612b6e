package storage

import (
	"context"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// AuditRepository is the interface for the execution audit trail persistence.
type AuditRepository interface {
	// RecordExecution stores a new audit record. An empty ID is filled by the repository.
	RecordExecution(ctx context.Context, r model.AuditRecord) error
	// ListExecutions returns the most recent records first, limit <= 0 returns all of them.
	ListExecutions(ctx context.Context, limit int) ([]model.AuditRecord, error)
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name AuditRepository

// NoopAuditRepository discards every record.
const NoopAuditRepository = noopAuditRepository(0)

type noopAuditRepository int

func (noopAuditRepository) RecordExecution(ctx context.Context, r model.AuditRecord) error {
	return nil
}

func (noopAuditRepository) ListExecutions(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	return nil, nil
}
