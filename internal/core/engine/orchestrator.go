// internal/core/engine/orchestrator.go
package engine

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
)

// Orchestrator coordina el ciclo completo de una enumeración:
// construye las tasks de cada módulo, las ejecuta en el pool y
// consolida los resultados en un report final.
//
// El fallo de setup de un módulo queda confinado a ese módulo: se
// registra en el report y la ejecución continúa con el resto.
type Orchestrator struct {
	modules []ports.Module
	configs map[domain.ModuleID]ports.ModuleConfig
	pool    *Pool
	tracker *Tracker
	logger  logx.Logger
}

// NewOrchestrator crea un orchestrator sobre los módulos dados.
// configs puede ser nil; los módulos sin entrada usan la config por defecto.
func NewOrchestrator(modules []ports.Module, configs map[domain.ModuleID]ports.ModuleConfig, pool *Pool, tracker *Tracker, logger logx.Logger) *Orchestrator {
	if logger == nil {
		logger = logx.New()
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Orchestrator{
		modules: modules,
		configs: configs,
		pool:    pool,
		tracker: tracker,
		logger:  logger.With("component", "orchestrator"),
	}
}

// Tracker expone el tracker compartido para presentadores de progreso.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// Run ejecuta la enumeración completa contra el target. Devuelve
// siempre un report (parcial si hubo cancelación) junto con el error
// acumulado de setups fallidos y/o la cancelación del contexto.
func (o *Orchestrator) Run(ctx context.Context, target domain.Target) (*domain.Report, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if len(o.modules) == 0 {
		return nil, domain.ErrNoModulesEnabled
	}

	agg := NewAggregator(target)
	var runErr *multierror.Error

	var tasks []domain.ProbeTask

	for _, mod := range o.modules {
		name := mod.Name()
		cfg, ok := o.configs[name]
		if !ok {
			cfg = ports.DefaultModuleConfig()
		}
		_ = agg.EnsureModule(name)

		built, err := mod.BuildTasks(ctx, target, cfg)
		if err != nil {
			o.logger.Warn("module setup failed",
				"module", name,
				"error", err.Error(),
			)
			_ = agg.RecordSetupFailure(name, err)
			runErr = multierror.Append(runErr, err)
			continue
		}

		valid := 0
		for i := range built {
			if verr := built[i].Validate(); verr != nil {
				// Task malformada: fallo permanente inmediato, sin invocar.
				_ = agg.Record(name, domain.ProbeResult{
					Source:   built[i].Source,
					Target:   built[i].Target,
					Status:   domain.StatusPermanent,
					Reason:   verr.Error(),
					Attempts: 0,
				})
				continue
			}
			tasks = append(tasks, built[i])
			valid++
		}

		o.logger.Info("module tasks built",
			"module", name,
			"tasks", valid,
		)
	}

	if len(tasks) > 0 {
		err := o.pool.Run(ctx, tasks, func(tr TaskResult) {
			if rerr := agg.Record(tr.Task.Module, tr.Result); rerr != nil {
				o.logger.Err(rerr, "op", "record result", "module", tr.Task.Module)
			}
		})
		if err != nil {
			runErr = multierror.Append(runErr, err)
		}
	}

	report, ferr := agg.Finalize()
	if ferr != nil {
		return nil, ferr
	}

	o.logger.Info("enumeration finished",
		"run_id", report.RunID,
		"probes", report.TotalProbes(),
		"failures", report.TotalFailures(),
	)

	return report, runErr.ErrorOrNil()
}

// Close cierra todos los módulos, acumulando errores.
func (o *Orchestrator) Close() error {
	var errs *multierror.Error
	for _, mod := range o.modules {
		if err := mod.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
