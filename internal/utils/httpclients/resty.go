package httpclients

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"remoteinfer/internal/infrastructure/logger"

	"resty.dev/v3"
)

type RequestID struct{}
type HTTPClientStartsAt struct{}

// Options bounds the client the same way the engine's admission gate is
// bounded: the transport never holds more connections than there are
// workers, so queued requests do not open sockets.
type Options struct {
	Timeout  time.Duration
	MaxConns int
}

// NewClient builds a resty client with debug logging middleware attached.
func NewClient(clientName string, opts Options) *resty.Client {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.MaxConns > 0 {
		client.SetTransport(&http.Transport{
			MaxConnsPerHost:     opts.MaxConns,
			MaxIdleConnsPerHost: opts.MaxConns,
		})
	}
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		ctx := context.WithValue(r.Context(), HTTPClientStartsAt{}, time.Now())
		ctx = context.WithValue(ctx, RequestID{}, uuid.NewString())
		r.SetContext(ctx)
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		log := logger.GetLogger()
		startTime, _ := r.Request.Context().Value(HTTPClientStartsAt{}).(time.Time)
		requestID, _ := r.Request.Context().Value(RequestID{}).(string)
		latency := time.Since(startTime)

		log.Debug().
			Str("request_id", requestID).
			Str("client", clientName).
			Int("status", r.StatusCode()).
			Str("method", r.Request.RawRequest.Method).
			Str("path", r.Request.RawRequest.URL.Path).
			Str("query", r.Request.RawRequest.URL.RawQuery).
			Dur("latency", latency).
			Msg("HTTP client request")
		return nil
	})
	return client
}
