// internal/adapters/output/json.go
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
)

// JSONWriter persiste el reporte completo como un único fichero JSON.
// Implementa ports.ReportWriter.
type JSONWriter struct {
	path string
}

// NewJSONWriter crea un writer hacia el path dado.
func NewJSONWriter(path string) *JSONWriter {
	if path == "" {
		path = "discord_enum_results.json"
	}
	return &JSONWriter{path: path}
}

// Path retorna el destino del writer.
func (w *JSONWriter) Path() string {
	return w.path
}

// Write serializa el reporte con indentación y lo escribe de forma
// atómica: primero a un temporal en el mismo directorio, luego rename.
func (w *JSONWriter) Write(report *domain.Report) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".discordenum-*.json")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := Encode(tmp, report); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), w.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// Encode serializa el reporte con indentación hacia cualquier writer.
func Encode(dst io.Writer, report *domain.Report) error {
	enc := json.NewEncoder(dst)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
