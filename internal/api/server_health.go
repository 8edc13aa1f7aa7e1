package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tab_cycler/internal/events"
)

func registerHealthHandlers(api huma.API, broker *events.Broker) {
	type healthOutput struct {
		Body struct {
			Status     string `json:"status"`
			SSEClients int    `json:"sse_clients"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.SSEClients = broker.ClientCount()
			return out, nil
		})
}
