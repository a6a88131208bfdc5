// internal/modules/common/outcome.go
package common

import (
	"github.com/rfs85/DicordEnumeration/internal/core/domain"
	"github.com/rfs85/DicordEnumeration/internal/platform/errors"
)

// OutcomeFromError traduce un error de plataforma al outcome del probe
// usando la taxonomía de sentinels: los errores transitorios (timeouts,
// rate limits, 5xx, fallos de conexión) son candidatos a retry; el resto
// es terminal.
func OutcomeFromError(err error) domain.Outcome {
	if err == nil {
		return domain.Success(nil)
	}
	if errors.IsTransient(err) {
		return domain.Transient(err.Error())
	}
	return domain.Permanent(err.Error())
}
