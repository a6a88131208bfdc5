// internal/core/domain/target.go
package domain

import (
	"fmt"
	"strings"
)

// Mode indica si la enumeración corre con o sin credenciales.
type Mode string

const (
	ModeUnauth Mode = "unauth"
	ModeAuth   Mode = "auth"
)

// Valid reporta si el modo es uno de los conocidos.
func (m Mode) Valid() bool {
	return m == ModeUnauth || m == ModeAuth
}

// Target describe la organización objetivo de un run de enumeración.
// Los dominios concretos que cada módulo sondea son responsabilidad del
// módulo; el core solo transporta esta etiqueta hasta el reporte.
type Target struct {
	Organization string
	Mode         Mode
}

// NewTarget crea un target normalizado.
func NewTarget(organization string, mode Mode) Target {
	return Target{
		Organization: strings.TrimSpace(strings.ToLower(organization)),
		Mode:         mode,
	}
}

// Validate verifica que el target sea usable.
func (t Target) Validate() error {
	if t.Organization == "" {
		return fmt.Errorf("%w: empty organization", ErrInvalidTarget)
	}
	if !t.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTarget, t.Mode)
	}
	return nil
}
