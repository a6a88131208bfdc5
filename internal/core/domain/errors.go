// internal/core/domain/errors.go
package domain

import "errors"

// Errores de dominio compartidos entre engine y orchestrator.
var (
	// ErrNoModulesEnabled indica que ningún módulo quedó habilitado tras aplicar la configuración.
	ErrNoModulesEnabled = errors.New("no enumeration modules enabled")

	// ErrMissingSource indica una task sin source identifier.
	ErrMissingSource = errors.New("probe task has no source")

	// ErrMissingModule indica una task sin módulo asociado.
	ErrMissingModule = errors.New("probe task has no module")

	// ErrNilInvoke indica una task sin closure de invocación.
	ErrNilInvoke = errors.New("probe task has nil invoke closure")

	// ErrReportFinalized indica un Record() después de Finalize().
	ErrReportFinalized = errors.New("report already finalized")

	// ErrInvalidTarget indica un target de enumeración mal formado.
	ErrInvalidTarget = errors.New("invalid enumeration target")
)
