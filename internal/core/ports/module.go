// internal/core/ports/module.go
package ports

import (
	"context"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
)

// Module es el port primario para las capacidades de enumeración.
// El core nunca inspecciona la semántica de los probes: solo pide el
// catálogo de tasks y programa su ejecución.
type Module interface {
	// Name retorna el identificador único del módulo (ej: "asn", "dns", "cdn")
	Name() domain.ModuleID

	// Description retorna una descripción corta para ayuda y logging
	Description() string

	// BuildTasks construye el catálogo de probes para el target.
	// Un error aquí es un setup failure: el módulo queda registrado como
	// fallido con cero tasks intentadas y el run continúa sin él.
	BuildTasks(ctx context.Context, target domain.Target, cfg ModuleConfig) ([]domain.ProbeTask, error)

	// Close libera recursos del módulo (conexiones, clientes, etc.)
	Close() error
}

// ModuleConfig contiene la configuración específica de un módulo.
type ModuleConfig struct {
	// Enabled indica si el módulo participa en el run
	Enabled bool

	// Token de autenticación opcional; los módulos que solo operan
	// sin credenciales lo ignoran
	Token string

	// Timeout máximo por invocación de probe
	Timeout time.Duration

	// Custom configuración específica del módulo
	Custom map[string]interface{}
}

// DefaultModuleConfig retorna una configuración por defecto.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		Enabled: true,
		Timeout: 10 * time.Second,
		Custom:  make(map[string]interface{}),
	}
}

// ModuleMetadata describe un módulo registrado: a qué source pertenece
// su tráfico y si necesita credenciales para aportar algo.
type ModuleMetadata struct {
	Name         domain.ModuleID
	Description  string
	Source       domain.SourceID
	RequiresAuth bool
}

// ProgressSnapshot es la vista poll-able del estado del run para una capa
// de display externa. Los contadores son consistentes entre sí solo de
// forma aproximada; sirven para reporting, no para control.
type ProgressSnapshot struct {
	Submitted int64
	Completed int64
	Failed    int64
	InFlight  int64
	Retried   int64
}

// Done reporta si todos los probes submitted alcanzaron estado terminal.
func (s ProgressSnapshot) Done() bool {
	return s.Submitted > 0 && s.Completed+s.Failed >= s.Submitted
}

// ReportWriter es el port para persistir el reporte final (JSON, tabla, etc.)
type ReportWriter interface {
	Write(report *domain.Report) error
}
