package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/hauslist/hauslist-backend/api/responses"
	"github.com/hauslist/hauslist-backend/pkg/config"
	"github.com/hauslist/hauslist-backend/pkg/db"
	pkgerrors "github.com/hauslist/hauslist-backend/pkg/errors"
	"github.com/hauslist/hauslist-backend/pkg/logger"
	pkgredis "github.com/hauslist/hauslist-backend/pkg/redis"
)

const readyCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Hauslist-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Hauslist-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := []struct {
			name   string
			pinger db.Pinger
		}{
			{"database", dbP},
			{"redis", redisP},
		}
		for _, check := range checks {
			if check.pinger == nil {
				continue
			}
			if err := check.pinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" not ready"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
