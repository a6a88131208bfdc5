// internal/platform/ui/noop_presenter.go
package ui

import (
	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
)

// NoopPresenter es una implementación vacía del Presenter
// que no produce ninguna salida. Útil para modo quiet o headless.
type NoopPresenter struct{}

// NewNoopPresenter crea una instancia del presenter sin salida.
func NewNoopPresenter() *NoopPresenter {
	return &NoopPresenter{}
}

// Start no hace nada
func (n *NoopPresenter) Start(info RunInfo) {}

// Update no hace nada
func (n *NoopPresenter) Update(snap ports.ProgressSnapshot) {}

// Info no hace nada
func (n *NoopPresenter) Info(msg string) {}

// Warning no hace nada
func (n *NoopPresenter) Warning(msg string) {}

// Error no hace nada
func (n *NoopPresenter) Error(msg string) {}

// Finish no hace nada
func (n *NoopPresenter) Finish(report *domain.Report) {}

// Close no hace nada
func (n *NoopPresenter) Close() error {
	return nil
}
