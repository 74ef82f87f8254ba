package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestiq/lead-engine/internal/dialogue"
	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

type stubEngine struct {
	resp *dialogue.Response
	err  error

	gotTenantCtx string
}

func (s *stubEngine) ProcessTurn(ctx context.Context, in dialogue.Inbound) (*dialogue.Response, error) {
	if id, ok := tenancy.TenantIDFromContext(ctx); ok {
		s.gotTenantCtx = id
	}
	return s.resp, s.err
}

func newTestRouter(engine TurnProcessor) http.Handler {
	return New(&Config{
		Logger: logging.New("error"),
		Engine: engine,
		Ready:  func(context.Context) error { return nil },
	})
}

const turnBody = `{
	"tenant_id": "tenant-1",
	"external_identity": "wa:34600111222",
	"channel_kind": "whatsapp",
	"payload": {"kind": "text", "text": "hola"}
}`

func TestTurnEndpointReturnsResponse(t *testing.T) {
	engine := &stubEngine{resp: &dialogue.Response{Message: "hi there", NextState: leads.StateWarmup}}
	srv := httptest.NewServer(newTestRouter(engine))
	defer srv.Close()

	res, err := http.Post(srv.URL+"/v1/turns", "application/json", strings.NewReader(turnBody))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out dialogue.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, "hi there", out.Message)
	assert.Equal(t, leads.StateWarmup, out.NextState)
	assert.Equal(t, "tenant-1", engine.gotTenantCtx, "tenant id must flow into the request context")
}

func TestTurnEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid inbound", dialogue.ErrInvalidInbound, http.StatusBadRequest},
		{"unknown tenant", tenancy.ErrTenantNotFound, http.StatusNotFound},
		{"conflict exhausted", leads.ErrVersionConflict, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(newTestRouter(&stubEngine{err: tc.err}))
			defer srv.Close()

			res, err := http.Post(srv.URL+"/v1/turns", "application/json", strings.NewReader(turnBody))
			require.NoError(t, err)
			res.Body.Close()
			assert.Equal(t, tc.want, res.StatusCode)
		})
	}
}

func TestTurnEndpointRejectsMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&stubEngine{}))
	defer srv.Close()

	res, err := http.Post(srv.URL+"/v1/turns", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("db down")
	h := New(&Config{
		Logger: logging.New("error"),
		Ready:  func(context.Context) error { return ready },
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
