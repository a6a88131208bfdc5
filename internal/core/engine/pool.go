// internal/core/engine/pool.go
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/platform/logx"
	"github.com/rfs85/DicordEnumeration/internal/platform/rate"
	"github.com/rfs85/DicordEnumeration/internal/platform/retry"
)

// Pool ejecuta probes de forma concurrente sobre una cola compartida.
// Cada worker: dequeue -> rate limit -> invoke con timeout -> clasificar.
// Los retries se re-encolan mediante timer sin bloquear al worker.
// Toda task submitted produce exactamente un outcome terminal, salvo
// cancelación externa, que descarta lo no iniciado.
type Pool struct {
	concurrency int
	callTimeout time.Duration
	gate        *rate.Gate
	policy      *retry.Policy
	tracker     *Tracker
	logger      logx.Logger
}

// PoolConfig configura el worker pool.
type PoolConfig struct {
	Concurrency int
	CallTimeout time.Duration
	Gate        *rate.Gate
	Policy      *retry.Policy
	Tracker     *Tracker
	Logger      logx.Logger
}

// TaskResult empareja una task con su outcome terminal.
type TaskResult struct {
	Task   domain.ProbeTask
	Result domain.ProbeResult
}

// item es una task en vuelo con su contador de intentos ya realizados.
type item struct {
	task    domain.ProbeTask
	attempt int
}

// NewPool crea un worker pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker()
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.New()
	}
	if cfg.Policy == nil {
		cfg.Policy = retry.NewPolicy(3, time.Second, 30*time.Second)
	}
	if cfg.Gate == nil {
		cfg.Gate = rate.NewGate(rate.Config{Capacity: 1}, nil)
	}

	return &Pool{
		concurrency: cfg.Concurrency,
		callTimeout: cfg.CallTimeout,
		gate:        cfg.Gate,
		policy:      cfg.Policy,
		tracker:     cfg.Tracker,
		logger:      cfg.Logger.With("component", "worker-pool"),
	}
}

// Run ejecuta todas las tasks hasta que cada una alcanza estado terminal
// o el contexto se cancela. record se invoca exactamente una vez por
// outcome terminal, desde los workers; debe ser seguro para llamadas
// concurrentes. El fallo permanente de una task nunca aborta el pool.
func (p *Pool) Run(ctx context.Context, tasks []domain.ProbeTask, record func(TaskResult)) error {
	if len(tasks) == 0 {
		return ctx.Err()
	}

	// La cola tiene capacidad para todas las tasks: el total de items
	// vivos nunca supera len(tasks), así que ni el seed ni los timers
	// de retry pueden bloquearse indefinidamente.
	queue := make(chan item, len(tasks))
	done := make(chan struct{})

	total := int64(len(tasks))
	var terminal int64

	finalize := func(res TaskResult) {
		if res.Result.Failed() {
			p.tracker.TaskFailed()
		} else {
			p.tracker.TaskCompleted()
		}
		record(res)
		if atomic.AddInt64(&terminal, 1) == total {
			close(done)
		}
	}

	for _, t := range tasks {
		p.tracker.TaskSubmitted()
		queue <- item{task: t}
	}

	p.logger.Info("starting worker pool",
		"workers", p.concurrency,
		"tasks", len(tasks),
		"call_timeout_ms", p.callTimeout.Milliseconds(),
	)

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, queue, finalize)
		}(i)
	}

	select {
	case <-done:
		// Todas las tasks (incluyendo retries) son terminales; no queda
		// ningún timer pendiente de encolar, es seguro cerrar la cola.
		close(queue)
	case <-ctx.Done():
		p.logger.Warn("cancellation signaled, discarding queued tasks")
	}

	wg.Wait()
	p.logger.Info("worker pool drained",
		"terminal", atomic.LoadInt64(&terminal),
		"submitted", total,
	)
	return ctx.Err()
}

func (p *Pool) worker(ctx context.Context, id int, queue chan item, finalize func(TaskResult)) {
	p.logger.Debug("worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("worker stopped", "worker_id", id)
			return

		case it, ok := <-queue:
			if !ok {
				p.logger.Debug("queue closed, worker stopping", "worker_id", id)
				return
			}
			p.execute(ctx, id, it, queue, finalize)
		}
	}
}

// execute realiza un intento de una task y decide su destino.
func (p *Pool) execute(ctx context.Context, workerID int, it item, queue chan item, finalize func(TaskResult)) {
	// Gate por source: la espera está acotada por el refill; una
	// cancelación aquí descarta la task sin invocarla.
	if err := p.gate.Acquire(ctx, string(it.task.Source)); err != nil {
		return
	}

	attempt := it.attempt + 1

	p.logger.Debug("executing probe",
		"worker_id", workerID,
		"module", it.task.Module,
		"source", it.task.Source,
		"target", it.task.Target,
		"attempt", attempt,
	)

	p.tracker.InvocationStarted()
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	start := time.Now()
	out := p.invoke(callCtx, it.task)
	duration := time.Since(start)
	timedOut := callCtx.Err() == context.DeadlineExceeded
	cancel()
	p.tracker.InvocationFinished()

	// Un timeout del per-call deadline fluye por el camino normal de retry.
	if timedOut && !out.IsSuccess() && ctx.Err() == nil {
		out = domain.Transientf("probe timed out after %s", p.callTimeout)
	}

	if !out.IsTransient() {
		finalize(p.result(it.task, out, attempt, duration))
		return
	}

	if ctx.Err() != nil {
		// Cancelado durante la invocación: no se programa retry.
		finalize(p.result(it.task, domain.Permanentf("canceled after %d attempts: %s", attempt, out.Reason), attempt, duration))
		return
	}

	dec := p.policy.Decide(attempt, out.Status)
	if !dec.Retry {
		// Presupuesto agotado: terminal permanente con la última razón transitoria.
		finalize(p.result(it.task, domain.Permanentf("attempts exhausted after %d: %s", attempt, out.Reason), attempt, duration))
		return
	}

	p.tracker.TaskRetried()
	p.logger.Debug("rescheduling probe",
		"module", it.task.Module,
		"target", it.task.Target,
		"attempt", attempt,
		"delay_ms", dec.After.Milliseconds(),
		"reason", out.Reason,
	)

	next := item{task: it.task, attempt: attempt}
	// El timer re-encola; el worker vuelve al pool inmediatamente.
	time.AfterFunc(dec.After, func() {
		select {
		case queue <- next:
		case <-ctx.Done():
		}
	})
}

// invoke aísla el closure del módulo: un panic se traduce en fallo
// permanente en lugar de tumbar el worker.
func (p *Pool) invoke(ctx context.Context, task domain.ProbeTask) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("probe panicked",
				"module", task.Module,
				"target", task.Target,
				"panic", r,
			)
			out = domain.Permanentf("probe panicked: %v", r)
		}
	}()
	return task.Invoke(ctx)
}

func (p *Pool) result(task domain.ProbeTask, out domain.Outcome, attempts int, duration time.Duration) TaskResult {
	return TaskResult{
		Task: task,
		Result: domain.ProbeResult{
			Source:   task.Source,
			Target:   task.Target,
			Status:   out.Status,
			Payload:  out.Payload,
			Reason:   out.Reason,
			Attempts: attempts,
			Duration: duration,
		},
	}
}
