// Package http adapts the executor to net/http clients: it replays request
// bodies across attempts and surfaces non-2xx responses as errors the
// classifier recognizes.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aponysus/aegis/classify"
	"github.com/aponysus/aegis/retry"
)

// errorBodyDrainLimit caps how much of an error body is drained before the
// connection is released for reuse.
const errorBodyDrainLimit = 4096

// Do executes req with retries under the policy for opCtx. Requests with a
// body must be replayable (GetBody set); non-2xx responses fail the attempt
// with a StatusError.
func Do(ctx context.Context, exec *retry.Executor, opCtx classify.OperationContext, client *http.Client, req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, errors.New("aegis: request body is not replayable (GetBody is nil)")
	}
	if client == nil {
		client = http.DefaultClient
	}

	op := func(ctx context.Context) (*http.Response, error) {
		outReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			outReq.Body = body
		}

		resp, err := client.Do(outReq)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		// Drain a bounded amount and close so the connection can be reused
		// by the next attempt.
		_, _ = io.CopyN(io.Discard, resp.Body, errorBodyDrainLimit)
		resp.Body.Close()

		return nil, &StatusError{Code: resp.StatusCode, Method: req.Method}
	}

	return retry.DoValue(ctx, exec, opCtx, op)
}

// StatusError reports a non-2xx response. Its message carries the status
// code, so classification lands on the api kind with 5xx retryable and 4xx
// not.
type StatusError struct {
	Code   int
	Method string
}

func (e *StatusError) Error() string {
	return "http status " + strconv.Itoa(e.Code)
}
