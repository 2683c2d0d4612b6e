// Package metrics provides the execution metrics of the gateway.
package metrics

import (
	"time"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// Recorder records gateway executions.
type Recorder interface {
	ObserveExecution(op model.Operation, outcome model.Outcome, duration time.Duration)
}

// Noop is a Recorder that does nothing.
const Noop = noop(0)

type noop int

func (noop) ObserveExecution(model.Operation, model.Outcome, time.Duration) {}
