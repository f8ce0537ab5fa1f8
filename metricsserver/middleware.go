/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package metricsserver

import (
	"context"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-crptapi/log"
)

type ctxKey int

const ctxKeyLogger ctxKey = iota

// loggingMiddleware puts a request-scoped logger into the context and logs finished requests.
// It must be installed after chimiddleware.RequestID.
func loggingMiddleware(logger log.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With(
				log.String("request_id", chimiddleware.GetReqID(r.Context())),
				log.String("method", r.Method),
				log.String("uri", r.RequestURI),
			)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyLogger, reqLogger))

			startTime := time.Now()
			wrw := chimiddleware.NewWrapResponseWriter(rw, r.ProtoMajor)
			next.ServeHTTP(wrw, r)

			reqLogger.Info("response completed",
				log.Int("status", wrw.Status()),
				log.Int("bytes_sent", wrw.BytesWritten()),
				log.DurationIn(time.Since(startTime), time.Millisecond),
			)
		})
	}
}

func loggerFromRequest(r *http.Request, fallback log.FieldLogger) log.FieldLogger {
	if logger, ok := r.Context().Value(ctxKeyLogger).(log.FieldLogger); ok {
		return logger
	}
	return fallback
}
