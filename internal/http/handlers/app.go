package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"genvoy/internal/domain"
	"genvoy/internal/fal"
	"genvoy/internal/generate"
)

// App bundles the collaborators the tool endpoints need.
type App struct {
	Logger    zerolog.Logger
	Client    *fal.Client
	Generator *generate.Service
}

// NewApp builds the handler container.
func NewApp(logger zerolog.Logger, client *fal.Client, generator *generate.Service) *App {
	return &App{Logger: logger, Client: client, Generator: generator}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Code: code, Message: message})
}

// toolError maps the closed error taxonomy onto HTTP statuses. Unknown
// errors never leak internals to the caller.
func (a *App) toolError(w http.ResponseWriter, err error) {
	var te *domain.ToolError
	if !errors.As(err, &te) {
		a.Logger.Error().Err(err).Msg("unclassified handler error")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	a.json(w, statusForCode(te.Code), errorBody{Code: string(te.Code), Message: te.Message})
}

func statusForCode(code domain.Code) int {
	switch code {
	case domain.CodeInvalidModelID, domain.CodePromptTooLong, domain.CodeValidation,
		domain.CodeAmbiguousCursor, domain.CodePathTraversal:
		return http.StatusBadRequest
	case domain.CodeAdminScope:
		return http.StatusForbidden
	case domain.CodeModelNotFound:
		return http.StatusNotFound
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeQueueStartTimeout, domain.CodeJobTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeAPIError, domain.CodeInvalidResponse, domain.CodeJobFailed,
		domain.CodeCDNExpired, domain.CodeDownloadFailed, domain.CodeNetworkError,
		domain.CodeStreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
