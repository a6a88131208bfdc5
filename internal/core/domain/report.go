// internal/core/domain/report.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Report es el resultado consolidado de un run completo: por cada módulo,
// la secuencia de outcomes en orden de finalización más su contador de
// fallos. Se construye incrementalmente y queda de solo lectura una vez
// que el worker pool drena.
type Report struct {
	RunID      string    `json:"run_id"`
	Target     string    `json:"target"`
	Mode       Mode      `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Modules map[ModuleID]*ModuleReport `json:"modules"`
}

// ModuleReport agrupa los resultados de un módulo.
type ModuleReport struct {
	// Results en orden de finalización (no de submission).
	Results []ProbeResult `json:"results"`

	// FailureCount cuenta outcomes terminales fallidos.
	FailureCount int `json:"failure_count"`

	// SetupError se rellena cuando el módulo ni siquiera pudo construir
	// su catálogo de tasks; en ese caso Results queda vacío.
	SetupError string `json:"setup_error,omitempty"`
}

// NewReport crea un reporte vacío para el target.
func NewReport(target Target) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Target:    target.Organization,
		Mode:      target.Mode,
		StartedAt: time.Now().UTC(),
		Modules:   make(map[ModuleID]*ModuleReport),
	}
}

// TotalProbes retorna el número de outcomes terminales registrados.
func (r *Report) TotalProbes() int {
	n := 0
	for _, m := range r.Modules {
		n += len(m.Results)
	}
	return n
}

// TotalFailures retorna la suma de fallos de todos los módulos.
func (r *Report) TotalFailures() int {
	n := 0
	for _, m := range r.Modules {
		n += m.FailureCount
	}
	return n
}

// FailureCounts retorna el mapa módulo -> fallos, útil para el resumen final.
func (r *Report) FailureCounts() map[ModuleID]int {
	counts := make(map[ModuleID]int, len(r.Modules))
	for id, m := range r.Modules {
		counts[id] = m.FailureCount
	}
	return counts
}
