// Package idempotency remembers responses to money-moving requests so that a
// repeated submission with the same Idempotency-Key replays the first answer.
package idempotency

import (
	"context"
	"errors"
)

var ErrInFlight = errors.New("request with this idempotency key is still in progress")

// Response is the stored answer for a key.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type Store interface {
	// Begin reserves key. It returns the stored response when the key already
	// completed, or ErrInFlight when another request holds the reservation.
	Begin(ctx context.Context, key string) (*Response, error)
	Complete(ctx context.Context, key string, resp Response) error
	// Release drops a reservation so the request may be retried.
	Release(ctx context.Context, key string) error
}
