package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/licensehub-wallet/api/responses"
	"github.com/angelmondragon/licensehub-wallet/api/validators"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	pkgredis "github.com/angelmondragon/licensehub-wallet/pkg/redis"
)

const (
	idempotencyKeyHeader   = "Idempotency-Key"
	idempotentReplayHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLen   = 255

	// pendingTTL bounds how long a crashed replica can block retries of a key.
	pendingTTL       = 2 * time.Minute
	paymentReplayTTL = 7 * 24 * time.Hour
	adminReplayTTL   = 24 * time.Hour

	adminWalletsPrefix = "/api/admin/v1/wallets/"
)

type idempotentRoute struct {
	method string
	// path is exact for user routes; for admin routes it is the action
	// segment after /api/admin/v1/wallets/{userId}/.
	path  string
	admin bool
	ttl   time.Duration
}

// Every money-moving write. Checkout retries can span days, so payments
// keep their replay records longest.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, path: "/api/v1/wallet/payments", ttl: paymentReplayTTL},
	{method: http.MethodPost, path: "deposits", admin: true, ttl: paymentReplayTTL},
	{method: http.MethodPost, path: "refunds", admin: true, ttl: paymentReplayTTL},
	{method: http.MethodPost, path: "credit-payments", admin: true, ttl: paymentReplayTTL},
	{method: http.MethodPost, path: "adjustments", admin: true, ttl: paymentReplayTTL},
	{method: http.MethodPost, path: "credit-limit", admin: true, ttl: adminReplayTTL},
}

// replayTTL reports whether method+path needs an Idempotency-Key and for how
// long its response is kept. path may be a concrete URL or a chi pattern.
func replayTTL(method, path string) (time.Duration, bool) {
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if !route.admin && path == route.path {
			return route.ttl, true
		}
		if route.admin {
			rest, ok := strings.CutPrefix(path, adminWalletsPrefix)
			if !ok {
				continue
			}
			user, action, ok := strings.Cut(rest, "/")
			if ok && user != "" && action == route.path {
				return route.ttl, true
			}
		}
	}
	return 0, false
}

const (
	statePending  = "pending"
	stateComplete = "complete"
)

// replayRecord is what lives under an idempotency key: first a pending
// reservation, then the captured response.
type replayRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes money-moving writes safe to retry. The first request
// under a key reserves it, runs, and stores its response; repeats replay that
// response, and a repeat that arrives while the first is still running gets
// a 409. 5xx and 429 answers release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			switch {
			case clientKey == "":
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				fail(pkgerrors.Newf(pkgerrors.CodeValidation, "Idempotency-Key must be at most %d characters", maxIdempotencyKeyLen))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					fail(pkgerrors.Newf(pkgerrors.CodeValidation, "request body exceeds %d bytes", tooLarge.Limit))
					return
				}
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(callerScope(r), clientKey)
			hash := requestHash(body)

			reservation, _ := json.Marshal(replayRecord{State: statePending, RequestHash: hash})
			reserved, err := store.SetNX(ctx, key, string(reservation), pendingTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, store, key, hash, w, fail)
				return
			}

			completed := false
			defer func() {
				if !completed {
					if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
						logIdempotencyError(ctx, logg, "release idempotency key", delErr)
					}
				}
			}()

			capture := &captureWriter{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if retryableStatus(status) {
				return
			}
			payload, err := json.Marshal(replayRecord{
				State:       stateComplete,
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				logIdempotencyError(ctx, logg, "encode idempotency record", err)
				return
			}
			if err := store.Set(context.WithoutCancel(ctx), key, string(payload), ttl); err != nil {
				logIdempotencyError(ctx, logg, "persist idempotency record", err)
				return
			}
			completed = true
		})
	}
}

func replayExisting(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, w http.ResponseWriter, fail func(error)) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the holder released or expired between our SETNX and GET
		fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}
	if err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State != stateComplete:
		fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(idempotentReplayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// retryableStatus marks answers a client is expected to retry under the same
// key, so they are never stored.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// callerScope keys records by caller and route so two users can reuse a key.
func callerScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{TenantIDFromContext(ctx), UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// captureWriter tees the response so it can be stored for replay.
type captureWriter struct {
	statusRecorder
	body bytes.Buffer
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}

func logIdempotencyError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
