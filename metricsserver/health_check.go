/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package metricsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/acronis/go-crptapi/log"
)

// StatusClientClosedRequest is used when the client goes away before the health check is finished.
const StatusClientClosedRequest = 499

// HealthCheckStatus is a resulting status of a component check.
type HealthCheckStatus int

// Health-check statuses.
const (
	HealthCheckStatusOK HealthCheckStatus = iota
	HealthCheckStatusFail
)

// HealthCheckResult maps component names to their statuses.
type HealthCheckResult = map[string]HealthCheckStatus

// HealthCheck reports statuses of the service components.
type HealthCheck = func(ctx context.Context) (HealthCheckResult, error)

type healthCheckResponseData struct {
	Components map[string]bool `json:"components"`
}

type healthCheckHandler struct {
	check  HealthCheck
	logger log.FieldLogger
}

func newHealthCheckHandler(check HealthCheck, logger log.FieldLogger) *healthCheckHandler {
	if check == nil {
		check = func(ctx context.Context) (HealthCheckResult, error) {
			return HealthCheckResult{}, ctx.Err()
		}
	}
	return &healthCheckHandler{check: check, logger: logger}
}

// ServeHTTP responds with 200 when every component is healthy and with 503 otherwise.
func (h *healthCheckHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := loggerFromRequest(r, h.logger)

	result, err := h.check(r.Context())
	if err != nil {
		logger.Error("error while checking health", log.Error(err))
		if errors.Is(err, context.Canceled) {
			rw.WriteHeader(StatusClientClosedRequest)
			return
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	respStatus := http.StatusOK
	respData := healthCheckResponseData{Components: make(map[string]bool, len(result))}
	for name, status := range result {
		respData.Components[name] = status == HealthCheckStatusOK
		if status != HealthCheckStatusOK {
			respStatus = http.StatusServiceUnavailable
		}
	}

	respJSON, err := json.Marshal(respData)
	if err != nil {
		logger.Error("error while marshaling health check response", log.Error(err))
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(respStatus)
	if _, err = rw.Write(respJSON); err != nil {
		logger.Error("error while writing health check response", log.Error(err))
	}
}
