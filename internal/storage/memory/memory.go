package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.AuditRepository.
type Repository struct {
	executions map[string]model.AuditRecord
	mu         sync.RWMutex
	logger     log.Logger
}

var _ storage.AuditRepository = &Repository{}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		executions: make(map[string]model.AuditRecord),
		logger:     cfg.Logger,
	}, nil
}

// RecordExecution stores an execution audit record.
func (r *Repository) RecordExecution(ctx context.Context, rec model.AuditRecord) error {
	if rec.Operation == "" || rec.Outcome == "" {
		return fmt.Errorf("operation and outcome are required: %w", model.ErrNotValid)
	}
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[rec.ID]; ok {
		return fmt.Errorf("execution %s already recorded: %w", rec.ID, model.ErrNotValid)
	}
	r.executions[rec.ID] = rec

	r.logger.Debugf("Recorded execution in memory: %s", rec.ID)
	return nil
}

// ListExecutions lists the latest execution records, newest first.
func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]model.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]model.AuditRecord, 0, len(r.executions))
	for _, rec := range r.executions {
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].At.Equal(records[j].At) {
			return records[i].ID > records[j].ID
		}
		return records[i].At.After(records[j].At)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}
