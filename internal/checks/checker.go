// Package checks contains the status checkers and the shared retry policy
// they all run under.
package checks

import (
	"context"
	"fmt"

	"github.com/statusops/idc-monitor/internal/config"
	"github.com/statusops/idc-monitor/internal/models"
)

// Checker is implemented by every status checker. CheckStatus either returns
// a result, possibly with problems recorded in its errors list, or fails
// with a classified error for the executor to absorb.
type Checker interface {
	Name() string
	CheckStatus(ctx context.Context) (models.StatusResult, error)
}

// validateConfig fails fast on an invalid shared config so severity math is
// never run under a broken policy.
func validateConfig(cfg config.StatusCheckConfig) error {
	if violations := cfg.Validate(); len(violations) > 0 {
		return fmt.Errorf("invalid status check config: %v", violations)
	}
	return nil
}
