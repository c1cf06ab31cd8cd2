package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-receiving/api/responses"
	pkgerrors "github.com/angelmondragon/packfinderz-receiving/pkg/errors"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-receiving/pkg/redis"
)

const (
	IdempotencyHeader     = "Idempotency-Key"
	ReplayedHeader        = "Idempotent-Replayed"
	defaultIdempotencyTTL = 24 * time.Hour
	defaultInFlightTTL    = time.Minute
	sessionsRoutePattern  = "/api/v1/purchase-orders/{purchaseOrderId}/{workflow}/sessions"
)

// Session saves and deletes are the only writes; previews and reads never touch storage.
var guardedRoutes = map[string]func(pattern string) bool{
	http.MethodPost:   func(p string) bool { return p == sessionsRoutePattern },
	http.MethodDelete: func(p string) bool { return strings.HasPrefix(p, sessionsRoutePattern+"/") },
}

// IdempotencyOptions tunes the idempotency middleware.
type IdempotencyOptions struct {
	TTL time.Duration
	// InFlightTTL bounds how long a reservation survives a crashed handler.
	InFlightTTL time.Duration
	// RequireKey rejects guarded requests that carry no Idempotency-Key.
	RequireKey bool
}

type idempotencyRecord struct {
	InFlight    bool              `json:"in_flight,omitempty"`
	Status      int               `json:"status,omitempty"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
	opts  IdempotencyOptions
}

// Idempotency makes guarded writes safe to retry. The key is reserved before the handler
// runs, so a concurrent duplicate gets 409 instead of saving twice. A completed response is
// replayed for the same key and body; a different body under the same key is rejected.
// Server errors release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, opts IdempotencyOptions) func(http.Handler) http.Handler {
	if opts.TTL <= 0 {
		opts.TTL = defaultIdempotencyTTL
	}
	if opts.InFlightTTL <= 0 {
		opts.InFlightTTL = defaultInFlightTTL
	}
	g := &idempotencyGuard{store: store, logg: logg, opts: opts}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !guarded(r.Method, routePattern(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if err := g.serve(w, r, next); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) error {
	ctx := r.Context()
	id := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if id == "" {
		if g.opts.RequireKey {
			return pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required")
		}
		next.ServeHTTP(w, r)
		return nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	hash := hashBody(body)
	key := g.store.IdempotencyKey(r.Method+"|"+r.URL.Path, id)

	existing, err := g.load(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return replay(w, existing, hash)
	}

	reserved, err := g.reserve(ctx, key, hash)
	if err != nil {
		return err
	}
	if !reserved {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress")
	}

	rec := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(rec, r)
	g.finish(context.WithoutCancel(ctx), key, hash, rec)
	return nil
}

func (g *idempotencyGuard) load(ctx context.Context, key string) (*idempotencyRecord, error) {
	stored, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && stored == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &record, nil
}

func (g *idempotencyGuard) reserve(ctx context.Context, key, hash string) (bool, error) {
	payload, err := json.Marshal(idempotencyRecord{InFlight: true, RequestHash: hash})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation")
	}
	ok, err := g.store.SetNX(ctx, key, string(payload), g.opts.InFlightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	return ok, nil
}

func (g *idempotencyGuard) finish(ctx context.Context, key, hash string, rec *responseCapture) {
	status := rec.statusOrOK()
	if status >= http.StatusInternalServerError {
		if err := g.store.Del(ctx, key); err != nil {
			g.logg.Error(ctx, "idempotency.release_failed", err)
		}
		return
	}

	record := idempotencyRecord{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
		RequestHash: hash,
	}
	if ct := rec.Header().Get("Content-Type"); ct != "" {
		record.Headers = map[string]string{"Content-Type": ct}
	}
	payload, err := json.Marshal(record)
	if err == nil {
		err = g.store.Set(ctx, key, string(payload), g.opts.TTL)
	}
	if err != nil {
		g.logg.Error(ctx, "idempotency.persist_failed", err)
	}
}

func replay(w http.ResponseWriter, record *idempotencyRecord, hash string) error {
	if record.RequestHash != hash {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body")
	}
	if record.InFlight {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress")
	}
	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response")
	}
	if ct := record.Headers["Content-Type"]; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
	return nil
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func guarded(method, pattern string) bool {
	match, ok := guardedRoutes[method]
	return ok && pattern != "" && match(pattern)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
