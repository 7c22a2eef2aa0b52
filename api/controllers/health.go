package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/skillroads/skillroads-backend/api/responses"
	"github.com/skillroads/skillroads-backend/pkg/config"
	"github.com/skillroads/skillroads-backend/pkg/db"
	pkgerrors "github.com/skillroads/skillroads-backend/pkg/errors"
	"github.com/skillroads/skillroads-backend/pkg/logger"
	"github.com/skillroads/skillroads-backend/pkg/redis"
)

const readyCheckTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SkillRoads-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the service can reach its backing stores.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SkillRoads-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		for _, check := range []struct {
			name string
			dep  interface{ Ping(context.Context) error }
		}{
			{name: "postgres", dep: dbP},
			{name: "redis", dep: redisP},
		} {
			if check.dep == nil {
				checks[check.name] = "skipped"
				continue
			}
			if err := check.dep.Ping(ctx); err != nil {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"dependency": check.name})
					logg.Error(logCtx, "readiness check failed", err)
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unreachable"))
				return
			}
			checks[check.name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
