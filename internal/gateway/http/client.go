// Package http implements the storefront gateways against the cart, user and
// recommendation services' JSON APIs.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

// envelope is the `{"data": ...}` success body of the downstream services.
type envelope struct {
	Data any `json:"data"`
}

// client performs JSON calls against one downstream service on behalf of a user.
type client struct {
	doer    httpclient.Doer
	baseURL string
	service string
}

func newClient(doer httpclient.Doer, baseURL, service string) client {
	return client{doer: doer, baseURL: strings.TrimRight(baseURL, "/"), service: service}
}

// call sends body (if any) as JSON and decodes the response's data field into out
// (if non-nil). Non-2xx answers become AppErrors carrying the downstream code.
func (c client) call(ctx context.Context, method, path, userID string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", c.service, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.CorrelationIDHeader, id)
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s service: %w", c.service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, c.service)
	}
	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(&envelope{Data: out}); err != nil {
		return apperrors.Internal(fmt.Errorf("decode %s response: %w", c.service, err))
	}
	return nil
}
