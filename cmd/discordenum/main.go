// cmd/discordenum/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/adapters/output"
	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/engine"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
	"github.com/rfs85/DicordEnumeration/internal/platform/cache"
	"github.com/rfs85/DicordEnumeration/internal/platform/config"
	"github.com/rfs85/DicordEnumeration/internal/platform/httpclient"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
	"github.com/rfs85/DicordEnumeration/internal/platform/rate"
	"github.com/rfs85/DicordEnumeration/internal/platform/registry"
	"github.com/rfs85/DicordEnumeration/internal/platform/retry"
	"github.com/rfs85/DicordEnumeration/internal/platform/ui"

	// Import modules for auto-registration via init()
	_ "github.com/rfs85/DicordEnumeration/internal/modules/asn"
	_ "github.com/rfs85/DicordEnumeration/internal/modules/cdn"
	_ "github.com/rfs85/DicordEnumeration/internal/modules/dnsrecon"
	_ "github.com/rfs85/DicordEnumeration/internal/modules/servers"
	_ "github.com/rfs85/DicordEnumeration/internal/modules/services"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// 1. Configuración centralizada (defaults < YAML < env < flags)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration load failed: %v\n", err)
		os.Exit(2)
	}

	if cfg.PrintVersion {
		fmt.Printf("discordenum %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}

	// 2. Logger compartido
	logger := logx.New()
	if cfg.Quiet {
		logger = logx.NewQuiet()
	}

	logger.Info("discordenum starting",
		"version", version,
		"target", cfg.Target,
		"workers", cfg.Workers,
		"modules", len(cfg.Modules),
		"authenticated", cfg.Token != "",
	)

	// 3. Contexto raíz con cancelación por señal
	ctx, cancel := rootContextWithSignals()
	defer cancel()

	// 4. Target del run
	mode := domain.ModeUnauth
	if cfg.Token != "" {
		mode = domain.ModeAuth
	}
	target := domain.NewTarget(cfg.Target, mode)
	if err := target.Validate(); err != nil {
		logger.Err(err, "phase", "validation")
		os.Exit(2)
	}

	// 5. Dependencias compartidas de los módulos
	client := httpclient.New(httpclient.Config{
		Timeout: cfg.CallTimeout(),
		Token:   cfg.Token,
	}, logger)

	deps := registry.Deps{
		HTTP:   client,
		Cache:  cache.NewMemoryCache(256),
		Logger: logger,
	}

	// 6. Módulos desde el registry
	buildConfigs, runConfigs := moduleConfigs(cfg)
	modules, err := registry.Global().Build(buildConfigs, deps)
	if err != nil {
		logger.Err(err, "phase", "module-build")
		os.Exit(2)
	}
	logger.Info("modules built", "count", len(modules))

	// 7. Motor: gate por source, política de retry y worker pool
	gate := rate.NewGate(rateConfig(cfg.Rate), rateOverrides(cfg.RateOverrides))
	policy := retry.NewPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond,
		time.Duration(cfg.Retry.MaxDelayMS)*time.Millisecond,
	)
	tracker := engine.NewTracker()

	pool := engine.NewPool(engine.PoolConfig{
		Concurrency: cfg.Workers,
		CallTimeout: cfg.CallTimeout(),
		Gate:        gate,
		Policy:      policy,
		Tracker:     tracker,
		Logger:      logger,
	})

	orch := engine.NewOrchestrator(modules, runConfigs, pool, tracker, logger)
	defer func() {
		if cerr := orch.Close(); cerr != nil {
			logger.Warn("failed to close modules", "error", cerr.Error())
		}
	}()

	// 8. Presentación del progreso
	var presenter ui.Presenter = ui.NewPTermPresenter()
	if cfg.Quiet {
		presenter = ui.NewNoopPresenter()
	}
	presenter.Start(ui.RunInfo{
		Target:         cfg.Target,
		Mode:           string(mode),
		Modules:        moduleNames(modules),
		Workers:        cfg.Workers,
		TimeoutSeconds: cfg.TimeoutS,
		MaxAttempts:    cfg.Retry.MaxAttempts,
		OutputPath:     cfg.OutputPath,
	})

	uiCtx, uiCancel := context.WithCancel(ctx)
	uiDone := make(chan struct{})
	go func() {
		defer close(uiDone)
		ui.Watch(uiCtx, presenter, tracker.Snapshot, 200*time.Millisecond)
	}()

	// 9. Ejecución
	start := time.Now()
	report, runErr := orch.Run(ctx, target)
	elapsed := time.Since(start)

	uiCancel()
	<-uiDone

	if runErr != nil {
		logger.Err(runErr, "phase", "run", "elapsed_ms", elapsed.Milliseconds())
		// Se sigue emitiendo el reporte parcial, útil en pipelines.
	}

	// 10. Salidas
	if report != nil {
		writer := output.NewJSONWriter(cfg.OutputPath)
		if werr := writer.Write(report); werr != nil {
			logger.Err(werr, "phase", "output")
			_ = presenter.Close()
			os.Exit(1)
		}
		presenter.Finish(report)

		// En modo quiet el presenter no pinta nada: el resumen tabular
		// por stdout sigue disponible para pipelines.
		if cfg.Quiet {
			if terr := output.OutputTable(os.Stdout, report); terr != nil {
				logger.Warn("failed to render summary table", "error", terr.Error())
			}
		}

		logger.Info("discordenum finished",
			"elapsed_ms", elapsed.Milliseconds(),
			"probes", report.TotalProbes(),
			"failures", report.TotalFailures(),
			"output", writer.Path(),
		)
	}

	if cerr := presenter.Close(); cerr != nil {
		logger.Warn("failed to close presenter", "error", cerr.Error())
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// moduleConfigs materializa la configuración por módulo en las dos
// formas que consumen el registry y el orquestador.
func moduleConfigs(cfg config.Config) (map[string]ports.ModuleConfig, map[domain.ModuleID]ports.ModuleConfig) {
	build := make(map[string]ports.ModuleConfig)
	run := make(map[domain.ModuleID]ports.ModuleConfig)

	for _, name := range registry.Global().List() {
		mc := ports.ModuleConfig{
			Enabled: cfg.ModuleEnabled(name),
			Token:   cfg.Token,
			Timeout: cfg.CallTimeout(),
			Custom:  map[string]interface{}{},
		}
		build[name] = mc
		run[domain.ModuleID(name)] = mc
	}
	return build, run
}

func moduleNames(modules []ports.Module) []string {
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, string(m.Name()))
	}
	return names
}

func rateConfig(b config.RateBudget) rate.Config {
	return rate.Config{
		Capacity:       b.Capacity,
		RefillInterval: time.Duration(b.RefillMS) * time.Millisecond,
		MinSpacing:     time.Duration(b.MinSpacingMS) * time.Millisecond,
	}
}

func rateOverrides(budgets map[string]config.RateBudget) map[string]rate.Config {
	if len(budgets) == 0 {
		return nil
	}
	overrides := make(map[string]rate.Config, len(budgets))
	for source, b := range budgets {
		overrides[source] = rateConfig(b)
	}
	return overrides
}

// rootContextWithSignals crea el contexto raíz cancelable por SIGINT y
// SIGTERM; la primera señal inicia el apagado limpio.
func rootContextWithSignals() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
