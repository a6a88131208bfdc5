// internal/platform/ui/pterm_presenter.go
package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/core/ports"
)

// PTermPresenter implementa Presenter usando la biblioteca pterm
// para renderizar una barra de progreso, colores y el resumen final.
type PTermPresenter struct {
	mu sync.Mutex

	bar       *pterm.ProgressbarPrinter
	startTime time.Time
	started   bool
}

// NewPTermPresenter crea una nueva instancia del presenter con pterm.
func NewPTermPresenter() *PTermPresenter {
	return &PTermPresenter{}
}

// Start inicia la presentación mostrando el header del run.
func (p *PTermPresenter) Start(info RunInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()

	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("Discord Infrastructure Enumerator")

	pterm.Println()

	infoPanel := pterm.DefaultBox.
		WithTitle("Run Configuration").
		WithTitleTopCenter().
		WithRightPadding(4).
		WithLeftPadding(4).
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan))

	runInfo := fmt.Sprintf("Target: %s\n", pterm.Cyan(info.Target))
	runInfo += fmt.Sprintf("Mode: %s\n", pterm.Yellow(info.Mode))
	runInfo += fmt.Sprintf("Modules: %s\n", strings.Join(info.Modules, ", "))
	runInfo += fmt.Sprintf("Workers: %d\n", info.Workers)
	runInfo += fmt.Sprintf("Probe timeout: %ds\n", info.TimeoutSeconds)
	runInfo += fmt.Sprintf("Attempt budget: %d\n", info.MaxAttempts)
	runInfo += fmt.Sprintf("Output: %s", info.OutputPath)

	infoPanel.Println(runInfo)
	pterm.Println()
}

// Update refresca la barra de progreso con el snapshot del tracker.
func (p *PTermPresenter) Update(snap ports.ProgressSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Submitted == 0 {
		return
	}

	if !p.started {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(int(snap.Submitted)).
			WithTitle("Probing").
			WithShowElapsedTime(true).
			Start()
		if err != nil {
			return
		}
		p.bar = bar
		p.started = true
	}

	terminal := int(snap.Completed + snap.Failed)
	if p.bar.Total != int(snap.Submitted) {
		p.bar.Total = int(snap.Submitted)
	}
	if delta := terminal - p.bar.Current; delta > 0 {
		p.bar.Add(delta)
	}
	p.bar.UpdateTitle(fmt.Sprintf("Probing (ok=%d failed=%d retried=%d in-flight=%d)",
		snap.Completed, snap.Failed, snap.Retried, snap.InFlight))
}

// Info muestra un mensaje informativo.
func (p *PTermPresenter) Info(msg string) {
	pterm.Info.Println(msg)
}

// Warning muestra una advertencia.
func (p *PTermPresenter) Warning(msg string) {
	pterm.Warning.Println(msg)
}

// Error muestra un error.
func (p *PTermPresenter) Error(msg string) {
	pterm.Error.Println(msg)
}

// Finish cierra la barra y muestra el resumen por módulo.
func (p *PTermPresenter) Finish(report *domain.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}

	pterm.Println()
	pterm.DefaultSection.Println("Enumeration Summary")

	names := make([]string, 0, len(report.Modules))
	for name := range report.Modules {
		names = append(names, string(name))
	}
	sort.Strings(names)

	rows := pterm.TableData{{"Module", "Probes", "Failed", "Setup"}}
	for _, name := range names {
		mr := report.Modules[domain.ModuleID(name)]
		setup := pterm.Green("ok")
		if mr.SetupError != "" {
			setup = pterm.Red(mr.SetupError)
		}
		failures := fmt.Sprintf("%d", mr.FailureCount)
		if mr.FailureCount > 0 {
			failures = pterm.Red(failures)
		}
		rows = append(rows, []string{name, fmt.Sprintf("%d", len(mr.Results)), failures, setup})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if report.TotalFailures() > 0 {
		pterm.Warning.Printfln("Finished in %s with %d failures across %d probes",
			elapsed, report.TotalFailures(), report.TotalProbes())
	} else {
		pterm.Success.Printfln("Finished in %s, %d probes", elapsed, report.TotalProbes())
	}
}

// Close limpia recursos del presenter.
func (p *PTermPresenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
	return nil
}
