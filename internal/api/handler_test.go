package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/provstore-interop/internal/storage"
)

const testAuthorization = "ApiKey alice:s3cret"

func setupTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage()
	handler := NewHandler(store, opts...)
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false), WithRateLimit(0, 0))
	return router, store
}

func createDocument(t *testing.T, router http.Handler, contentType, authorization string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, DocumentsPath, bytes.NewReader(data))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeDocument(t *testing.T, rec *httptest.ResponseRecorder) documentResponse {
	t.Helper()

	var doc documentResponse
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return doc
}

func TestHealthEndpoint(t *testing.T) {
	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	router, _ := setupTestRouter(t, WithClock(func() time.Time { return now }))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ok" || !body.Timestamp.Equal(now) {
		t.Fatalf("unexpected health response %+v", body)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	router, store := setupTestRouter(t)

	rec := createDocument(t, router, "text/provenance-notation", testAuthorization, map[string]any{
		"content": "document\nendDocument",
		"public":  true,
		"rec_id":  "rec-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	doc := decodeDocument(t, rec)
	if doc.ID != 1 || doc.Owner != "alice" || doc.Format != "provn" || doc.RecID != "rec-1" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if loc := rec.Header().Get("Location"); loc != DocumentsPath+"1" {
		t.Fatalf("unexpected Location %q", loc)
	}

	id := strconv.FormatInt(doc.ID, 10)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentsPath+id+".provn", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/provenance-notation" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "document\nendDocument" {
		t.Fatalf("unexpected body %q", body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentsPath+id, nil))
	if rec.Code != http.StatusOK || decodeDocument(t, rec).Format != "provn" {
		t.Fatalf("expected metadata response, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentsPath+id+".ttl", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unavailable conversion, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, DocumentsPath+id, nil)
	req.Header.Set("Authorization", testAuthorization)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if store.Count() != 0 {
		t.Fatalf("expected store to be empty after delete")
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req.Clone(req.Context()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestCreateDocumentRejections(t *testing.T) {
	testCases := []struct {
		name          string
		contentType   string
		authorization string
		body          any
		opts          []HandlerOption
		want          int
	}{
		{"missing authorization", "application/json", "", map[string]any{"content": "{}"}, nil, http.StatusUnauthorized},
		{"wrong scheme", "application/json", "Bearer token", map[string]any{"content": "{}"}, nil, http.StatusUnauthorized},
		{"malformed credential", "application/json", "ApiKey nokey", map[string]any{"content": "{}"}, nil, http.StatusUnauthorized},
		{"unknown key", "application/json", testAuthorization, map[string]any{"content": "{}"}, []HandlerOption{WithAPIKeys("bob:other")}, http.StatusUnauthorized},
		{"unsupported media type", "text/plain", testAuthorization, map[string]any{"content": "{}"}, nil, http.StatusUnsupportedMediaType},
		{"not json", "application/json", testAuthorization, "not an object", nil, http.StatusBadRequest},
		{"empty content", "application/json", testAuthorization, map[string]any{"content": " "}, nil, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := setupTestRouter(t, tc.opts...)
			rec := createDocument(t, router, tc.contentType, tc.authorization, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateDocumentAcceptsConfiguredKey(t *testing.T) {
	router, _ := setupTestRouter(t, WithAPIKeys("alice:s3cret"))

	rec := createDocument(t, router, "application/json; charset=utf-8", testAuthorization, map[string]any{"content": "{}", "public": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
}

func TestPrivateDocumentsAreHiddenFromOthers(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := createDocument(t, router, "application/json", testAuthorization, map[string]any{"content": "{}", "public": false})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentsPath+"1.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected anonymous read to be hidden, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, DocumentsPath+"1.json", nil)
	req.Header.Set("Authorization", testAuthorization)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected owner read to succeed, got %d", rec.Code)
	}
}

func TestDeleteDocumentRequiresOwner(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := createDocument(t, router, "application/json", testAuthorization, map[string]any{"content": "{}", "public": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, DocumentsPath+"1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req.Header.Set("Authorization", "ApiKey mallory:x")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", rec.Code)
	}
}

func TestGetDocumentUnknownIDs(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, path := range []string{"abc.json", "0.json", "99.json", "99"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DocumentsPath+path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", path, rec.Code)
		}
	}
}

func TestRequestIDHelpers(t *testing.T) {
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }
