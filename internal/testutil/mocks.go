// internal/testutil/mocks.go
package testutil

import (
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// Nota: Los mocks específicos de domain/ports están en sus respectivos paquetes
// Este archivo contiene solo utilidades genéricas sin dependencias circulares

// MockRoundTripper permite inyectar respuestas HTTP en los tests de clientes.
type MockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
	calls         atomic.Int64
	LastURL       string
	LastMethod    string
}

// NewMockRoundTripper crea un RoundTripper que responde 200 con body vacío.
func NewMockRoundTripper() *MockRoundTripper {
	return &MockRoundTripper{}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.calls.Add(1)
	m.LastURL = req.URL.String()
	m.LastMethod = req.Method
	if m.RoundTripFunc != nil {
		return m.RoundTripFunc(req)
	}
	return MockResponse(http.StatusOK, "{}"), nil
}

// Calls devuelve el número de requests recibidas.
func (m *MockRoundTripper) Calls() int {
	return int(m.calls.Load())
}

// MockResponse construye una *http.Response mínima para tests.
func MockResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}
