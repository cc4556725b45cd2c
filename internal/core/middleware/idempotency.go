package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Nzyazin/schoolwallet/internal/core/idempotency"
	"github.com/Nzyazin/schoolwallet/internal/core/logger"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

// Idempotency replays the stored response for a repeated POST carrying the same
// Idempotency-Key on the same path. Server errors and panics release the key.
func Idempotency(store idempotency.Store, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			scoped := r.URL.Path + "|" + key

			stored, err := store.Begin(r.Context(), scoped)
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				writeError(w, http.StatusConflict, err.Error())
				return
			case err != nil:
				log.Error("idempotency store unavailable",
					logger.StringField("path", r.URL.Path),
					logger.ErrorField("error", err))
				writeError(w, http.StatusServiceUnavailable, "Idempotency store unavailable")
				return
			case stored != nil:
				log.Info("replaying idempotent response",
					logger.StringField("path", r.URL.Path),
					logger.StringField("idempotency_key", key))
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(stored.StatusCode)
				_, _ = w.Write(stored.Body)
				return
			}

			ctx := context.WithoutCancel(r.Context())
			defer func() {
				if p := recover(); p != nil {
					if err := store.Release(ctx, scoped); err != nil {
						log.Error("failed to release idempotency key", logger.ErrorField("error", err))
					}
					panic(p)
				}
			}()

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				if err := store.Release(ctx, scoped); err != nil {
					log.Error("failed to release idempotency key", logger.ErrorField("error", err))
				}
				return
			}

			resp := idempotency.Response{
				StatusCode:  rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := store.Complete(ctx, scoped, resp); err != nil {
				log.Error("failed to store idempotent response", logger.ErrorField("error", err))
			}
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
