package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nestiq/lead-engine/internal/dialogue"
	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

// TurnProcessor is the dialogue engine surface the API needs.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, in dialogue.Inbound) (*dialogue.Response, error)
}

type errorBody struct {
	Error string `json:"error"`
}

func handleTurn(engine TurnProcessor, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in dialogue.Inbound
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed turn payload"})
			return
		}

		ctx := tenancy.WithTenantID(r.Context(), in.TenantID)
		resp, err := engine.ProcessTurn(ctx, in)
		if err != nil {
			switch {
			case errors.Is(err, dialogue.ErrInvalidInbound):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			case errors.Is(err, tenancy.ErrTenantNotFound):
				writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
			case errors.Is(err, leads.ErrVersionConflict):
				// The retry budget is exhausted; the adapter should redeliver.
				writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
			default:
				logger.Error("turn processing failed",
					"tenant_id", in.TenantID,
					"external_id", in.ExternalID,
					"error", err,
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			}
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
