// internal/core/engine/tracker.go
package engine

import (
	"sync/atomic"

	"github.com/rfs85/DicordEnumeration/internal/core/ports"
)

// Tracker mantiene contadores atómicos de progreso del run. Es puramente
// observacional: quitarlo no cambia los resultados de la enumeración.
// Snapshot es seguro desde un goroutine de reporting mientras los
// workers mutan estado.
type Tracker struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
	retried   atomic.Int64
}

// NewTracker crea un tracker a cero, con ciclo de vida ligado a un run.
func NewTracker() *Tracker {
	return &Tracker{}
}

// TaskSubmitted se incrementa exactamente una vez por task encolada.
func (t *Tracker) TaskSubmitted() { t.submitted.Add(1) }

// InvocationStarted marca el comienzo de una invocación.
func (t *Tracker) InvocationStarted() { t.inFlight.Add(1) }

// InvocationFinished marca el fin de una invocación (éxito o fallo).
func (t *Tracker) InvocationFinished() { t.inFlight.Add(-1) }

// TaskCompleted registra un outcome terminal exitoso.
func (t *Tracker) TaskCompleted() { t.completed.Add(1) }

// TaskFailed registra un outcome terminal fallido.
func (t *Tracker) TaskFailed() { t.failed.Add(1) }

// TaskRetried registra un reschedule por fallo transitorio.
func (t *Tracker) TaskRetried() { t.retried.Add(1) }

// Snapshot retorna una vista consistente-aproximada de los contadores.
func (t *Tracker) Snapshot() ports.ProgressSnapshot {
	return ports.ProgressSnapshot{
		Submitted: t.submitted.Load(),
		Completed: t.completed.Load(),
		Failed:    t.failed.Load(),
		InFlight:  t.inFlight.Load(),
		Retried:   t.retried.Load(),
	}
}
