package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/diagnosis/reservations/pkg/logger"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
	idempotencyTTL    = 24 * time.Hour
)

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	replayed    bool
}

// Idempotency collapses POSTs that carry the same Idempotency-Key. Concurrent
// duplicates wait for the first request and share its response; successful
// responses are replayed from store for 24 hours.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	var group singleflight.Group

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			hashedKey := fmt.Sprintf("idempotency:%x", sha256.Sum256([]byte(r.URL.Path+"\x00"+key)))

			v, _, _ := group.Do(hashedKey, func() (interface{}, error) {
				// the result is shared with every waiting duplicate, so the
				// first caller disconnecting must not cancel it
				ctx := context.WithoutCancel(r.Context())
				if existing, err := store.Get(ctx, hashedKey); err != nil {
					logger.WarnContext(ctx, "Idempotency lookup failed", "error", err)
				} else if existing != "" {
					var cached cachedResponse
					if err := json.Unmarshal([]byte(existing), &cached); err == nil {
						cached.replayed = true
						return &cached, nil
					}
				}

				rec := newBufferedResponse()
				next.ServeHTTP(rec, r.WithContext(ctx))
				resp := &cachedResponse{
					Status:      rec.status,
					ContentType: rec.header.Get("Content-Type"),
					Body:        rec.body.Bytes(),
				}

				if resp.Status >= 200 && resp.Status < 300 {
					encoded, _ := json.Marshal(resp)
					if err := store.Set(ctx, hashedKey, string(encoded), idempotencyTTL); err != nil {
						logger.WarnContext(ctx, "Failed to store idempotent response", "error", err)
					}
				}
				return resp, nil
			})

			resp := v.(*cachedResponse)
			if resp.ContentType != "" {
				w.Header().Set("Content-Type", resp.ContentType)
			}
			if resp.replayed {
				w.Header().Set(ReplayedHeader, "true")
			}
			w.WriteHeader(resp.Status)
			w.Write(resp.Body)
		})
	}
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	b.status = status
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}
