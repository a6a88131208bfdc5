// internal/platform/ui/presenter.go
package ui

import (
	"context"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
)

// Presenter define la interfaz para presentar el progreso de un run
// de enumeración en terminal.
type Presenter interface {
	// Start inicia la presentación con información del run
	Start(info RunInfo)

	// Update refresca la vista con el snapshot actual del tracker
	Update(snap ports.ProgressSnapshot)

	// Info muestra un mensaje informativo
	Info(msg string)

	// Warning muestra una advertencia
	Warning(msg string)

	// Error muestra un error
	Error(msg string)

	// Finish cierra la presentación con el reporte final
	Finish(report *domain.Report)

	// Close limpia recursos del presenter
	Close() error
}

// RunInfo contiene información inicial del run.
type RunInfo struct {
	Target         string
	Mode           string
	Modules        []string
	Workers        int
	TimeoutSeconds int
	MaxAttempts    int
	OutputPath     string
}

// Watch sondea el tracker y empuja snapshots al presenter hasta que el
// contexto se cancela o todos los probes son terminales.
func Watch(ctx context.Context, p Presenter, snapshot func() ports.ProgressSnapshot, interval time.Duration) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := snapshot()
			p.Update(snap)
			if snap.Done() {
				return
			}
		}
	}
}
