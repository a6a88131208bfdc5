// internal/core/engine/aggregator.go
package engine

import (
	"sync"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
)

// Aggregator colecciona outcomes terminales en un Report consistente
// bajo fallos parciales. Los appends se serializan internamente pero
// son baratos; nunca se sostiene el lock a través de una llamada de red.
type Aggregator struct {
	mu        sync.Mutex
	report    *domain.Report
	finalized bool
}

// NewAggregator crea un aggregator para un run contra el target dado.
func NewAggregator(target domain.Target) *Aggregator {
	return &Aggregator{
		report: domain.NewReport(target),
	}
}

// EnsureModule garantiza que el módulo aparezca en el reporte aunque no
// registre ningún outcome (p.ej. cero tasks construidas).
func (a *Aggregator) EnsureModule(module domain.ModuleID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return domain.ErrReportFinalized
	}
	a.ensureLocked(module)
	return nil
}

// Record añade el outcome terminal a la secuencia del módulo (orden de
// finalización, no de submission) y actualiza su contador de fallos.
// Es un error llamarlo después de Finalize.
func (a *Aggregator) Record(module domain.ModuleID, res domain.ProbeResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return domain.ErrReportFinalized
	}

	mr := a.ensureLocked(module)
	mr.Results = append(mr.Results, res)
	if res.Failed() {
		mr.FailureCount++
	}
	return nil
}

// RecordSetupFailure marca un módulo que no pudo construir su catálogo:
// queda registrado como completamente fallido con cero tasks intentadas.
func (a *Aggregator) RecordSetupFailure(module domain.ModuleID, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return domain.ErrReportFinalized
	}

	mr := a.ensureLocked(module)
	mr.SetupError = err.Error()
	mr.FailureCount++
	return nil
}

// Finalize sella el reporte y lo retorna de solo lectura. Solo puede
// llamarse una vez, tras el drain del worker pool.
func (a *Aggregator) Finalize() (*domain.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return nil, domain.ErrReportFinalized
	}
	a.finalized = true
	a.report.FinishedAt = time.Now().UTC()
	return a.report, nil
}

func (a *Aggregator) ensureLocked(module domain.ModuleID) *domain.ModuleReport {
	mr, ok := a.report.Modules[module]
	if !ok {
		// Slice no-nil para que un módulo sin outcomes serialice como
		// lista vacía y no como null.
		mr = &domain.ModuleReport{Results: []domain.ProbeResult{}}
		a.report.Modules[module] = mr
	}
	return mr
}
