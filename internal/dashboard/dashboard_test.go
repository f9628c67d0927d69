package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgedash/internal/auth"
	"hedgedash/internal/types"
)

type fakeCalc struct {
	calls   atomic.Int32
	table   *types.HedgeTable
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCalc) Compute(ctx context.Context, n float64) (*types.HedgeTable, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	t := *f.table
	t.NotionalWan = n
	return &t, nil
}

type fakeNav struct {
	summary  *types.NavSummary
	password string
}

func (f *fakeNav) Refresh(ctx context.Context, password string) (*types.NavSummary, error) {
	f.password = password
	if password == "" {
		return nil, auth.ErrEmptyPassword
	}
	if password != "secret" {
		return nil, auth.ErrBadPassword
	}
	return f.summary, nil
}

func sampleTable() *types.HedgeTable {
	return &types.HedgeTable{
		DataUpdated: "2025-01-10 15:00:00",
		Rows: []types.HedgeResult{{
			Code: "IC2501", Name: "中证500指数2501", LotValue: 1200000, Lots: 4,
			Hedged: 4800000, Unhedged: 200000, RequiredMargin: 672000, ChangePct: "+1.01%",
		}},
	}
}

func sampleSummary() *types.NavSummary {
	return &types.NavSummary{
		ScanID: "scan-1",
		Records: []types.NavRecord{{
			Vendor: "hanrong", Product: "HR", NavDate: "2025-01-09",
			PreFee: decimal.NewFromInt(1000), PostFee: decimal.NewFromInt(950),
		}},
		TotalPre:  decimal.NewFromInt(1000),
		TotalPost: decimal.NewFromInt(950),
		PnLSince:  "2024-12-31",
	}
}

func newTestServer(calc *fakeCalc, nav *fakeNav) *Server {
	return New(Config{}, calc, nav, nil)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPageRendersForms(t *testing.T) {
	s := newTestServer(&fakeCalc{table: sampleTable()}, &fakeNav{})
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/hedge"`)
	assert.Contains(t, body, `action="/holdings"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHedgeForm(t *testing.T) {
	calc := &fakeCalc{table: sampleTable()}
	s := newTestServer(calc, &fakeNav{})

	rec := do(t, s.Handler(), postForm("/hedge", url.Values{"notional": {"500"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "IC2501")
	assert.Contains(t, body, "672000")
	assert.Contains(t, body, "合约代码")
	assert.Contains(t, body, "2025-01-10 15:00:00")
}

func TestHedgeFormRejectsBadInput(t *testing.T) {
	calc := &fakeCalc{table: sampleTable()}
	s := newTestServer(calc, &fakeNav{})

	for _, in := range []string{"", "abc", "-5", "0"} {
		rec := do(t, s.Handler(), postForm("/hedge", url.Values{"notional": {in}}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, in)
	}
	assert.Zero(t, calc.calls.Load())
}

func TestHedgeEmptyTableShowsNotice(t *testing.T) {
	s := newTestServer(&fakeCalc{table: &types.HedgeTable{}}, &fakeNav{})

	rec := do(t, s.Handler(), postForm("/hedge", url.Values{"notional": {"500"}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgUnavailable)

	rec = do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/hedge?notional=500", nil))
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, msgUnavailable, got["notice"])
}

func TestHedgeAPI(t *testing.T) {
	s := newTestServer(&fakeCalc{table: sampleTable()}, &fakeNav{})

	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/hedge?notional=1,200", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.HedgeTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, 1200, got.NotionalWan, 1e-9)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, int64(4), got.Rows[0].Lots)
}

func TestHedgeAPIUpstreamError(t *testing.T) {
	s := newTestServer(&fakeCalc{err: io.ErrUnexpectedEOF}, &fakeNav{})
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/api/v1/hedge?notional=10", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHedgeConcurrentSubmitConflicts(t *testing.T) {
	calc := &fakeCalc{table: sampleTable(), entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(calc, &fakeNav{summary: sampleSummary()})
	h := s.Handler()

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/hedge?notional=500", nil))
		done <- rec.Code
	}()

	select {
	case <-calc.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first request never reached the calculator")
	}

	rec := do(t, h, postForm("/hedge", url.Values{"notional": {"500"}}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), msgBusy)

	// holdings is guarded separately
	rec = do(t, h, postForm("/holdings", url.Values{"password": {"secret"}}))
	assert.NotEqual(t, http.StatusConflict, rec.Code)

	close(calc.release)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Equal(t, int32(1), calc.calls.Load())
}

func TestHoldingsForm(t *testing.T) {
	nav := &fakeNav{summary: sampleSummary()}
	s := newTestServer(&fakeCalc{table: sampleTable()}, nav)

	rec := do(t, s.Handler(), postForm("/holdings", url.Values{"password": {"secret"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "hanrong")
	assert.Contains(t, body, "1000.00")
	assert.Contains(t, body, "合计")
	assert.NotContains(t, body, "secret")

	rec = do(t, s.Handler(), postForm("/holdings", url.Values{"password": {"nope"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "password verification failed")

	rec = do(t, s.Handler(), postForm("/holdings", url.Values{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHoldingsAPI(t *testing.T) {
	nav := &fakeNav{summary: sampleSummary()}
	s := newTestServer(&fakeCalc{table: sampleTable()}, nav)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/holdings", bytes.NewBufferString(`{"password":"secret"}`))
	rec := do(t, s.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.NavSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "scan-1", got.ScanID)
	require.Len(t, got.Records, 1)
	assert.True(t, got.TotalPost.Equal(decimal.NewFromInt(950)))

	nav.password = ""
	req = httptest.NewRequest(http.MethodPost, "/api/v1/holdings", bytes.NewBufferString(`not json`))
	rec = do(t, s.Handler(), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "", nav.password)
}

func TestZstdCompression(t *testing.T) {
	s := newTestServer(&fakeCalc{table: sampleTable()}, &fakeNav{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	rec := do(t, s.Handler(), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))

	dec, err := zstd.NewReader(rec.Body)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(plain))
}

func TestMetricsAndNotFound(t *testing.T) {
	s := newTestServer(&fakeCalc{table: sampleTable()}, &fakeNav{})
	h := s.Handler()

	do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)

	// browsers accept both; the body must decode under the advertised encoding
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	rec = do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))
	dec, err := zstd.NewReader(rec.Body)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Contains(t, string(plain), "hedgedash_http_request_duration_seconds")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestZstdSkipsPreEncodedResponses(t *testing.T) {
	h := zstdMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte("already-encoded"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	rec := do(t, h, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "already-encoded", rec.Body.String())
}

func TestRequestIDPropagates(t *testing.T) {
	s := newTestServer(&fakeCalc{table: sampleTable()}, &fakeNav{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := do(t, s.Handler(), req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}
