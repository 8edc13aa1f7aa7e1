package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tab_cycler/internal/settings"
	"github.com/dgnsrekt/tab_cycler/internal/types"
)

const (
	commandGetTimerState = "getTimerState"
	commandSaveSettings  = "saveSettings"
)

type commandInput struct {
	Body struct {
		Command  string         `json:"command" doc:"getTimerState or saveSettings"`
		Settings map[string]any `json:"settings,omitempty" doc:"minIntervalS, maxIntervalS and urlList for saveSettings"`
	}
}

type commandOutput struct {
	Body any
}

type timerStateOutput struct {
	Body types.TimerState
}

type settingsOutput struct {
	Body settings.Settings
}

type saveSettingsInput struct {
	Body settings.Settings
}

type saveResultOutput struct {
	Body types.SaveResult
}

// registerCommandHandlers serves the display client's request envelope.
// Failures are answered in the envelope, never as HTTP errors.
func registerCommandHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "command", Method: http.MethodPost, Path: "/api/v1/command", Summary: "Display client request envelope", Tags: []string{"Client"}},
		func(ctx context.Context, input *commandInput) (*commandOutput, error) {
			out := &commandOutput{}
			switch input.Body.Command {
			case commandGetTimerState:
				state, err := svc.GetTimerState(ctx)
				if err != nil {
					out.Body = types.SaveResult{Error: err.Error()}
					return out, nil
				}
				out.Body = state
			case commandSaveSettings:
				s := input.Body.Settings
				c := settings.Candidate{
					MinIntervalS: s[settings.KeyMinIntervalS],
					MaxIntervalS: s[settings.KeyMaxIntervalS],
					URLList:      s[settings.KeyURLList],
				}
				if err := svc.SaveSettings(ctx, c); err != nil {
					out.Body = types.SaveResult{Error: errorText(err)}
					return out, nil
				}
				out.Body = types.SaveResult{Success: true}
			default:
				out.Body = types.SaveResult{Error: "unknown command: " + input.Body.Command}
			}
			return out, nil
		})
}

func registerTimerHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-timer", Method: http.MethodGet, Path: "/api/v1/timer", Summary: "Get countdown, status and settings", Tags: []string{"Timer"}},
		func(ctx context.Context, input *struct{}) (*timerStateOutput, error) {
			state, err := svc.GetTimerState(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &timerStateOutput{Body: state}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/v1/settings", Summary: "Get interval bounds and cycle URLs", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			state, err := svc.GetTimerState(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &settingsOutput{}
			out.Body = settings.Settings{MinIntervalS: state.MinIntervalS, MaxIntervalS: state.MaxIntervalS, URLList: state.URLList}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "put-settings", Method: http.MethodPut, Path: "/api/v1/settings", Summary: "Replace interval bounds and cycle URLs", Tags: []string{"Settings"}},
		func(ctx context.Context, input *saveSettingsInput) (*saveResultOutput, error) {
			if err := svc.SaveSettings(ctx, settings.CandidateFrom(input.Body)); err != nil {
				return nil, mapErr(err)
			}
			return &saveResultOutput{Body: types.SaveResult{Success: true}}, nil
		})
}

// errorText prefers the coded message over the wrapped chain.
func errorText(err error) string {
	var coded *types.CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}
