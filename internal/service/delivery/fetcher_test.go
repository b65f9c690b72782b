package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("PNGDATA"))
		case "/big.png":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewHTTPFetcher(time.Second)

	data, err := f.Fetch(context.Background(), server.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	_, err = f.Fetch(context.Background(), server.URL+"/missing.png")
	assert.ErrorContains(t, err, "404")

	f.maxBytes = 16
	_, err = f.Fetch(context.Background(), server.URL+"/big.png")
	assert.ErrorContains(t, err, "exceeds")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, server.URL+"/slow.png")
	assert.Error(t, err)
}
