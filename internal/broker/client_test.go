package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowquant/meanrev-engine/internal/xerrors"
)

func TestAuthenticate_ParsesSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/markets/events/session", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"stream":{"sessionid":"sess-123"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	id, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-123", id)
}

func TestAuthenticate_ServerErrorIsAuthKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	_, err := c.Authenticate(context.Background())
	assert.ErrorIs(t, err, xerrors.ErrAuth)
}

func TestSubmitOrder_SendsMarketDayFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct/orders", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "acct", r.PostForm.Get("account_id"))
		assert.Equal(t, "equity", r.PostForm.Get("class"))
		assert.Equal(t, "SPY", r.PostForm.Get("symbol"))
		assert.Equal(t, "buy", r.PostForm.Get("side"))
		assert.Equal(t, "25", r.PostForm.Get("quantity"))
		assert.Equal(t, "market", r.PostForm.Get("type"))
		assert.Equal(t, "day", r.PostForm.Get("duration"))
		_, _ = w.Write([]byte(`{"order":{"id":42,"status":"ok"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	resp, err := c.SubmitOrder(context.Background(), "SPY", "buy", 25)
	require.NoError(t, err)
	assert.Equal(t, 42, resp.Order.ID)
	assert.Equal(t, "ok", resp.Order.Status)
}

func TestDo_5xxIsTransientTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	_, err := c.SubmitOrder(context.Background(), "SPY", "buy", 1)
	assert.ErrorIs(t, err, xerrors.ErrTransientTransport)
}

func TestDo_MalformedBodyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	_, err := c.SubmitOrder(context.Background(), "SPY", "buy", 1)
	assert.ErrorIs(t, err, xerrors.ErrProtocol)
}

func TestHistory_SendsDailyIntervalQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "SPY", q.Get("symbol"))
		assert.Equal(t, "daily", q.Get("interval"))
		assert.Equal(t, "2024-06-10", q.Get("start"))
		assert.Equal(t, "2024-06-30", q.Get("end"))
		assert.Equal(t, "all", q.Get("session_filter"))
		_, _ = w.Write([]byte(`{"history":{"day":[{"date":"2024-06-28","open":10,"high":12,"low":9,"close":11,"volume":1000}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	resp, err := c.History(context.Background(),
		"SPY",
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, resp.History.Day, 1)
}

func TestPositions_ParsesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct/positions", r.URL.Path)
		_, _ = w.Write([]byte(`{"positions":{"position":[{"id":1,"symbol":"SPY","quantity":100,"cost_basis":10000,"date_acquired":"2024-01-02"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "acct", "tok")
	resp, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Positions.Position, 1)
	assert.Equal(t, int64(100), resp.Positions.Position[0].Quantity)
}
