package stream_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MegaGrindStone/nany-chat/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := stream.NewClient("http://127.0.0.1:5000/chat", logger)
	require.NoError(t, err)

	_, err = stream.NewClient("ftp://127.0.0.1/chat", logger)
	require.Error(t, err)

	_, err = stream.NewClient("://bad", logger)
	require.Error(t, err)
}

func TestClientStream(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		handler    func(w http.ResponseWriter, r *http.Request)
		wantData   []string
		wantErr    bool
		wantServer bool
	}{
		{
			name: "Message and named events",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeEvents(w, "data: Hi\n\n", "event: ping\ndata: x\n\n", "data:  there\n\n", "event: message\ndata: !\n\n")
			},
			wantData: []string{"Hi", " there", "!"},
		},
		{
			name: "Server error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: true,
		},
		{
			name: "Error event",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeEvents(w, "data: A\n\n", "event: error\ndata: model unavailable\n\n", "data: B\n\n")
			},
			wantData:   []string{"A"},
			wantErr:    true,
			wantServer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(tt.handler))
			defer srv.Close()

			cli, err := stream.NewClient(srv.URL+"/chat", logger)
			require.NoError(t, err)

			var data []string
			var gotErr error
			for d, err := range cli.Stream(context.Background(), "hello") {
				if err != nil {
					gotErr = err
					break
				}
				data = append(data, d)
			}

			assert.Equal(t, tt.wantData, data)
			if !tt.wantErr {
				assert.NoError(t, gotErr)
				return
			}
			assert.Error(t, gotErr)
			if tt.wantServer {
				assert.ErrorIs(t, gotErr, stream.ErrServer)
			}
		})
	}
}

func TestClientStreamEncodesMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	got := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.URL.Query().Get("message")
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		writeEvents(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	cli, err := stream.NewClient(srv.URL+"/chat", logger)
	require.NoError(t, err)

	for range cli.Stream(context.Background(), "¿qué tal? a&b=c") {
	}

	assert.Equal(t, "¿qué tal? a&b=c", <-got)
}

func TestClientClosedAfterSentinel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	closed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, "data: Hi\n\n", "data:  there\n\n", "data: [DONE]\n\n")
		// The connection stays open from this side; only the client can end it.
		<-r.Context().Done()
		close(closed)
	}))
	defer srv.Close()

	cli, err := stream.NewClient(srv.URL+"/chat", logger)
	require.NoError(t, err)

	sink := &recordingSink{}
	state := stream.NewAccumulator(cli, logger).Run(context.Background(), sink, "hello")

	assert.Equal(t, stream.StateCompleted, state)
	assert.Equal(t, []string{"a:Hi there"}, sink.display)

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("stream connection was not closed after the sentinel")
	}
}

func TestClientConnectionRefused(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/chat"
	srv.Close()

	cli, err := stream.NewClient(endpoint, logger)
	require.NoError(t, err)

	sink := &recordingSink{}
	state := stream.NewAccumulator(cli, logger).Run(context.Background(), sink, "hello")

	assert.Equal(t, stream.StateFailed, state)
	assert.Equal(t, []string{"error"}, sink.display)
	assert.False(t, sink.loading)
}

func writeEvents(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, f := range frames {
		fmt.Fprint(w, f)
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
}
