package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/tab_cycler/internal/events"
	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is what the display client talks to.
type Service interface {
	GetTimerState(ctx context.Context) (types.TimerState, error)
	SaveSettings(ctx context.Context, c settings.Candidate) error
}

func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tab Cycler API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/events", events.SSEHandler(broker))

	registerCommandHandlers(api, svc)
	registerTimerHandlers(api, svc)
	registerHealthHandlers(api, broker)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case types.CodeSettingsInvalid:
			return huma.Error400BadRequest(coded.Message)
		case types.CodeTargetUnavailable:
			return huma.Error404NotFound(coded.Message)
		case types.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		case types.CodeTargetTransient:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
