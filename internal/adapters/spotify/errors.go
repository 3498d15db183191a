package spotify

import (
	"fmt"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

var ErrNotFound = fmt.Errorf("spotify track: %w", domain.ErrNotFound)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify api status %d: %s", e.Status, e.Body)
}

// 5xx y 429 sin Retry-After cuentan como proveedor caído.
func (e *APIError) Unwrap() error {
	if e.Status >= 500 || e.Status == 429 {
		return domain.ErrConnectivity
	}
	return nil
}
