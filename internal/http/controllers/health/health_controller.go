// Package health exposes readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/credstart/internal/http/helpers"
)

// Pinger is anything with a liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller answers GET /readyz.
type Controller struct {
	deps map[string]Pinger
}

// NewController takes the named dependencies readiness reports on.
func NewController(deps map[string]Pinger) *Controller {
	return &Controller{deps: deps}
}

// Ready reports 200 when every dependency answers its ping, 503 otherwise.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(c.deps))
	for name, dep := range c.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	helpers.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
