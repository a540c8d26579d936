package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/yDkay/payment-system/api/responses"
	"github.com/yDkay/payment-system/pkg/config"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/logger"
)

const readyCheckTimeout = 2 * time.Second

// Pinger is any dependency that can answer a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Payments-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, Redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP Pinger, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["db"] = "down"
				healthy = false
			} else {
				checks["db"] = "up"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "down"
				healthy = false
			} else {
				checks["redis"] = "up"
			}
		}

		w.Header().Set("X-Payments-Env", cfg.App.Env)
		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "dependency not ready").WithDetails(checks))
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
