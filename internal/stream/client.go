package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tmaxmax/go-sse"
)

// Client opens server-sent event streams on a chat endpoint. It implements Source.
type Client struct {
	endpoint *url.URL

	client *http.Client
	logger *slog.Logger
}

// ErrServer is wrapped by the error yielded when the endpoint reports a failure through an error
// event.
var ErrServer = errors.New("chat endpoint error")

// NewClient creates a Client for the given endpoint URL, for example "http://127.0.0.1:5000/chat".
// The HTTP client has no timeout: a stream lasts as long as the endpoint keeps it open.
func NewClient(endpoint string, logger *slog.Logger) (Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return Client{}, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Client{}, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}

	return Client{
		endpoint: u,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "client")),
	}, nil
}

// Stream issues GET <endpoint>?message=<message> and yields the data of every message event. An
// error event from the endpoint, a non-200 response, or a malformed stream is yielded as an error,
// after which the iteration ends. The connection is closed as soon as the iteration ends.
func (c Client) Stream(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		u := *c.endpoint
		q := u.Query()
		q.Set("message", message)
		u.RawQuery = q.Encode()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		c.logger.Debug("Opening stream", slog.String("url", u.String()))

		resp, err := c.client.Do(req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield("", fmt.Errorf("unexpected status: %s", resp.Status))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading stream: %w", err))
				return
			}
			switch ev.Type {
			case "", "message":
				if !yield(ev.Data, nil) {
					return
				}
			case "error":
				yield("", fmt.Errorf("%w: %s", ErrServer, ev.Data))
				return
			default:
				c.logger.Debug("Skipping event", slog.String("type", ev.Type))
			}
		}
	}
}
