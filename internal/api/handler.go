package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eugenenazirov/provstore-interop/internal/formats"
	"github.com/eugenenazirov/provstore-interop/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	authorizationScheme = "ApiKey "
	maxRequestBytes     = 12 << 20
)

// Handler serves the ProvStore document endpoints from a Storage.
type Handler struct {
	storage storage.Storage

	clock   func() time.Time
	apiKeys map[string]struct{}
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithAPIKeys restricts uploads and deletions to the given "user:key" credentials.
// With no keys configured any ApiKey credential is accepted.
func WithAPIKeys(keys ...string) HandlerOption {
	return func(h *Handler) {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				h.apiKeys[k] = struct{}{}
			}
		}
	}
}

// NewHandler constructs a Handler with the provided storage.
func NewHandler(store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		apiKeys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Documents: h.storage.Count(),
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "a valid ApiKey authorization header is required")
		return
	}

	format, ok := formatForContentType(r.Header.Get("Content-Type"))
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported media type", "Content-Type must name a PROV serialisation")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	doc, err := h.storage.Create(storage.Document{
		RecID:   req.RecID,
		Format:  format,
		Content: req.Content,
		Public:  req.Public,
		Owner:   owner,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidDocument) {
			writeError(w, http.StatusBadRequest, "Invalid document", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Location", DocumentsPath+strconv.FormatInt(doc.ID, 10))
	writeJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("document")
	idPart, format, hasFormat := strings.Cut(raw, ".")

	doc, ok := h.lookup(w, idPart)
	if !ok {
		return
	}
	if !doc.Public {
		owner, authed := h.authenticate(r)
		if !authed || owner != doc.Owner {
			writeError(w, http.StatusNotFound, "Not found", "document not found")
			return
		}
	}

	if !hasFormat {
		writeJSON(w, http.StatusOK, toDocumentResponse(doc))
		return
	}

	if !formats.Known(format) {
		writeError(w, http.StatusNotFound, "Not found", "unknown format "+strconv.Quote(format))
		return
	}
	if format != doc.Format {
		writeError(w, http.StatusNotFound, "Not found",
			"conversion from "+doc.Format+" to "+format+" is not available")
		return
	}

	contentType, _ := formats.ContentType(format)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc.Content)
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	owner, authed := h.authenticate(r)
	if !authed {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "a valid ApiKey authorization header is required")
		return
	}

	doc, ok := h.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	if doc.Owner != owner {
		writeError(w, http.StatusForbidden, "Forbidden", "document belongs to another user")
		return
	}

	if err := h.storage.Delete(doc.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, rawID string) (storage.Document, bool) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Not found", "document not found")
		return storage.Document{}, false
	}

	doc, err := h.storage.Get(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", err.Error())
			return storage.Document{}, false
		}
		writeInternalError(w, err)
		return storage.Document{}, false
	}
	return doc, true
}

// authenticate returns the user name from an "ApiKey user:key" header.
func (h *Handler) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, authorizationScheme) {
		return "", false
	}
	credential := strings.TrimSpace(strings.TrimPrefix(header, authorizationScheme))
	user, key, ok := strings.Cut(credential, ":")
	if !ok || user == "" || key == "" {
		return "", false
	}
	if len(h.apiKeys) > 0 {
		if _, known := h.apiKeys[credential]; !known {
			return "", false
		}
	}
	return user, true
}

func formatForContentType(contentType string) (string, bool) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.TrimSpace(mediaType)
	for _, f := range formats.All() {
		if ct, _ := formats.ContentType(f); ct == mediaType {
			return f, true
		}
	}
	return "", false
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func toDocumentResponse(doc storage.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		RecID:     doc.RecID,
		Owner:     doc.Owner,
		Public:    doc.Public,
		Format:    doc.Format,
		CreatedAt: doc.CreatedAt,
	}
}

type createDocumentRequest struct {
	Content string `json:"content"`
	Public  bool   `json:"public"`
	RecID   string `json:"rec_id"`
}

type documentResponse struct {
	ID        int64     `json:"id"`
	RecID     string    `json:"rec_id,omitempty"`
	Owner     string    `json:"owner"`
	Public    bool      `json:"public"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Documents int       `json:"documents"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
