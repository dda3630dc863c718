package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	mw "github.com/edvin/borgdesk/internal/api/middleware"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// asUser injects an authenticated user identity into the request context.
func asUser(r *http.Request, userID string) *http.Request {
	return mw.WithUserID(r, userID)
}

const testUserID = "user-1"

// stubDB implements core.DB with pluggable functions.
type stubDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *stubDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc != nil {
		return s.queryRowFunc(ctx, sql, args...)
	}
	return &stubRow{scan: func(...any) error { return pgx.ErrNoRows }}
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r *stubRow) Scan(dest ...any) error { return r.scan(dest...) }

// repoRowScan fills a repositories row owned by the given user.
func repoRowScan(id, owner string) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = "docs"
		*(dest[2].(*string)) = "/srv/borg/docs"
		*(dest[6].(*string)) = owner
		*(dest[7].(*time.Time)) = time.Now()
		*(dest[8].(*time.Time)) = time.Now()
		return nil
	}
}

// jobRowScan fills a jobs row owned by the given user.
func jobRowScan(id, owner, status, logOutput string) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = "create"
		*(dest[2].(*string)) = status
		*(dest[3].(*string)) = "repo-1"
		*(dest[4].(*string)) = owner
		*(dest[7].(*string)) = logOutput
		*(dest[11].(*time.Time)) = time.Now()
		return nil
	}
}
