package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DownstreamErrorResponse mirrors the `{"error":{"code","message"}}` envelope returned by
// the cart, wishlist and recommendation services.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads a non-2xx response and translates it into an AppError that keeps
// the downstream machine-readable code (for example STOCK_EXCEEDED). The body is consumed
// and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Transient(fmt.Errorf("%s returned status %d (read body: %w)", serviceName, resp.StatusCode, err))
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(bodyBytes, &downstream) == nil && downstream.Error != nil {
		return mapDownstreamError(resp.StatusCode, downstream.Error.Code, downstream.Error.Message, serviceName)
	}

	return mapDownstreamError(resp.StatusCode, "", string(bodyBytes), serviceName)
}

// mapDownstreamError maps a downstream status/code pair onto the storefront taxonomy.
func mapDownstreamError(status int, code, message, serviceName string) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.Validation(orDefault(code, apperrors.CodeValidation), message)
	case status == http.StatusNotFound:
		return apperrors.NotFoundCode(orDefault(code, apperrors.CodeNotFound), message)
	case status == http.StatusConflict:
		return apperrors.Conflict(orDefault(code, "CONFLICT"), message)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.Unauthorized(fmt.Sprintf("%s: %s", serviceName, message))
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return apperrors.Transient(fmt.Errorf("%s returned status %d (%s): %s", serviceName, status, code, message))
	default:
		return apperrors.Internal(fmt.Errorf("%s returned unexpected status %d (%s): %s", serviceName, status, code, message))
	}
}

func orDefault(code, fallback string) string {
	if code == "" {
		return fallback
	}
	return code
}
