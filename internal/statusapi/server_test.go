package statusapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/persistence"
)

type fakeBook struct {
	positions []domainmodel.Position
	pnl       []domainmodel.RealizedPnL
}

func (f fakeBook) AllPositions() []domainmodel.Position   { return f.positions }
func (f fakeBook) RealizedPnL() []domainmodel.RealizedPnL { return f.pnl }

func newTestServer(book OrderBook) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewServer(0, book, persistence.Handle{}, logger)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlePositions_ReturnsPositionBook(t *testing.T) {
	book := fakeBook{positions: []domainmodel.Position{
		{Symbol: "SPY", Quantity: 100, CostBasis: 10000},
	}}
	s := newTestServer(book)

	rec := get(t, s, "/positions")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domainmodel.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "SPY", got[0].Symbol)
	assert.Equal(t, int64(100), got[0].Quantity)
}

func TestHandlePnL_SumsRecords(t *testing.T) {
	book := fakeBook{pnl: []domainmodel.RealizedPnL{
		{ID: "a", Symbol: "SPY", PnL: 1500},
		{ID: "b", Symbol: "QQQ", PnL: -300},
	}}
	s := newTestServer(book)

	rec := get(t, s, "/pnl")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Total   float64                   `json:"total"`
		Records []domainmodel.RealizedPnL `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1200.0, got.Total)
	assert.Len(t, got.Records, 2)
}

func TestHandleHealth_ReportsOKAndQueueDepth(t *testing.T) {
	s := newTestServer(fakeBook{})

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Status            string `json:"status"`
		PersistQueueDepth int    `json:"persist_queue_depth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 0, got.PersistQueueDepth)
}

func TestRouter_RejectsNonGetMethods(t *testing.T) {
	s := newTestServer(fakeBook{})

	req := httptest.NewRequest(http.MethodPost, "/positions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
