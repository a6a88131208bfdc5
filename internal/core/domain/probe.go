// internal/core/domain/probe.go
package domain

import (
	"context"
	"fmt"
	"time"
)

// SourceID identifica el sistema upstream consultado por un probe.
// Cada source tiene su propio presupuesto de rate limiting; no se comparte.
type SourceID string

const (
	SourceRegistry SourceID = "network-registry"
	SourceDNS      SourceID = "dns-resolver"
	SourceAPI      SourceID = "rest-api"
	SourceCDN      SourceID = "cdn-endpoint"
)

// ModuleID identifica una capacidad de enumeración (ej: "asn", "dns", "cdn").
type ModuleID string

// Status clasifica el resultado de un probe.
type Status int

const (
	// StatusSuccess indica que el probe completó y produjo un payload.
	StatusSuccess Status = iota

	// StatusTransient indica un fallo recuperable mediante retry
	// (timeout de red, respuesta rate-limited, upstream temporalmente caído).
	StatusTransient

	// StatusPermanent indica un fallo no recuperable
	// (auth rechazada, recurso inexistente, request malformado).
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTransient:
		return "transient_failure"
	case StatusPermanent:
		return "permanent_failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalJSON serializa el status como string legible.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Outcome es el resultado etiquetado de una invocación de probe.
// El payload es opaco: el engine nunca lo interpreta, solo lo transporta
// hasta el aggregator.
type Outcome struct {
	Status  Status
	Payload any
	Reason  string
}

// Success construye un outcome exitoso con su payload opaco.
func Success(payload any) Outcome {
	return Outcome{Status: StatusSuccess, Payload: payload}
}

// Transient construye un fallo recuperable.
func Transient(reason string) Outcome {
	return Outcome{Status: StatusTransient, Reason: reason}
}

// Transientf construye un fallo recuperable con formato.
func Transientf(format string, args ...any) Outcome {
	return Transient(fmt.Sprintf(format, args...))
}

// Permanent construye un fallo no recuperable.
func Permanent(reason string) Outcome {
	return Outcome{Status: StatusPermanent, Reason: reason}
}

// Permanentf construye un fallo no recuperable con formato.
func Permanentf(format string, args ...any) Outcome {
	return Permanent(fmt.Sprintf(format, args...))
}

// IsSuccess reporta si el outcome es terminal exitoso.
func (o Outcome) IsSuccess() bool { return o.Status == StatusSuccess }

// IsTransient reporta si el outcome es candidato a retry.
func (o Outcome) IsTransient() bool { return o.Status == StatusTransient }

// ProbeTask es una unidad de trabajo: un source, un target y un closure
// de invocación provisto por el módulo. Inmutable una vez creada; la cola
// es la dueña exclusiva hasta que un worker la reclama.
type ProbeTask struct {
	Source SourceID
	Module ModuleID
	Target string
	Invoke func(ctx context.Context) Outcome
}

// Validate verifica que la task esté bien formada antes de encolarla.
func (t ProbeTask) Validate() error {
	if t.Source == "" {
		return fmt.Errorf("probe task for module %q: %w", t.Module, ErrMissingSource)
	}
	if t.Module == "" {
		return ErrMissingModule
	}
	if t.Invoke == nil {
		return fmt.Errorf("probe task %s/%s: %w", t.Module, t.Target, ErrNilInvoke)
	}
	return nil
}

// ProbeResult es el outcome terminal de una task junto con metadata de
// ejecución. Es lo único que llega al aggregator: exactamente un
// ProbeResult por cada task submitted.
type ProbeResult struct {
	Source   SourceID      `json:"source"`
	Target   string        `json:"target"`
	Status   Status        `json:"status"`
	Payload  any           `json:"payload,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration_ns"`
}

// Failed reporta si el resultado terminal es un fallo.
func (r ProbeResult) Failed() bool { return r.Status != StatusSuccess }
