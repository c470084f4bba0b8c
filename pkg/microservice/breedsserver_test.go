package microservice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-dogbreeds/pkg/breeds"
	"github.com/illmade-knight/go-dogbreeds/pkg/microservice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dogFetcher() breeds.FetcherFunc {
	return func(_ context.Context, breed string) ([]string, error) {
		switch breeds.NormalizeKey(breed) {
		case "hound":
			return []string{"afghan", "basset"}, nil
		case "broken":
			return nil, errors.New("unexpected failure")
		default:
			return nil, breeds.NewNotFoundError(breed, "Breed not found", nil)
		}
	}
}

// startServer runs s on a free port and returns its base URL.
func startServer(t *testing.T, s *microservice.BreedsServer) string {
	t.Helper()
	return startServerCtx(t, s, context.Background())
}

func startServerCtx(t *testing.T, s *microservice.BreedsServer, ctx context.Context) string {
	t.Helper()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return "http://127.0.0.1" + s.GetHTTPPort()
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), string(body))
	}
	return resp
}

func TestBreedsServer(t *testing.T) {
	caching, err := breeds.NewCachingFetcher(dogFetcher(), zerolog.Nop())
	require.NoError(t, err)
	s, err := microservice.NewBreedsServer(caching, zerolog.Nop(), ":0")
	require.NoError(t, err)
	baseURL := startServer(t, s)

	t.Run("Healthz reports cache state", func(t *testing.T) {
		var out map[string]interface{}
		resp := getJSON(t, baseURL+"/healthz", &out)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(microservice.RequestIDHeader))
		assert.Equal(t, "ok", out["status"])
		assert.Contains(t, out, "callsMade")
		assert.Contains(t, out, "cachedBreeds")
	})

	t.Run("Sub-breeds found", func(t *testing.T) {
		var out struct {
			Breed     string   `json:"breed"`
			SubBreeds []string `json:"subBreeds"`
		}
		resp := getJSON(t, baseURL+"/breeds/Hound/sub-breeds", &out)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Hound", out.Breed)
		assert.Equal(t, []string{"afghan", "basset"}, out.SubBreeds)
	})

	t.Run("Unknown breed is a 404", func(t *testing.T) {
		var out struct {
			Error string `json:"error"`
		}
		resp := getJSON(t, baseURL+"/breeds/unicorn/sub-breeds", &out)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Breed not found", out.Error)
	})

	t.Run("Other errors are a 500", func(t *testing.T) {
		resp := getJSON(t, baseURL+"/breeds/broken/sub-breeds", nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("Stats reflect cache use", func(t *testing.T) {
		_ = getJSON(t, baseURL+"/breeds/hound/sub-breeds", nil)

		var out struct {
			CallsMade    int64 `json:"callsMade"`
			CachedBreeds int   `json:"cachedBreeds"`
		}
		resp := getJSON(t, baseURL+"/stats", &out)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		// hound once, unicorn once, broken once; the second hound lookup is a hit.
		assert.Equal(t, int64(3), out.CallsMade)
		assert.Equal(t, 1, out.CachedBreeds)

		var health map[string]interface{}
		_ = getJSON(t, baseURL+"/healthz", &health)
		assert.EqualValues(t, 3, health["callsMade"])
		assert.EqualValues(t, 1, health["cachedBreeds"])
	})

	t.Run("Incoming request id is echoed", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set(microservice.RequestIDHeader, "abc-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "abc-123", resp.Header.Get(microservice.RequestIDHeader))
	})
}

func TestBreedsServer_StatsUnsupported(t *testing.T) {
	s, err := microservice.NewBreedsServer(dogFetcher(), zerolog.Nop(), ":0")
	require.NoError(t, err)
	baseURL := startServer(t, s)

	resp := getJSON(t, baseURL+"/stats", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestNewBreedsServer_NilFetcher(t *testing.T) {
	_, err := microservice.NewBreedsServer(nil, zerolog.Nop(), ":0")
	require.Error(t, err)
	assert.ErrorIs(t, err, breeds.ErrInvalidArgument)
}

func TestBreedsServer_RequestLogging(t *testing.T) {
	// Arrange
	var logs syncBuffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	s, err := microservice.NewBreedsServer(dogFetcher(), logger, ":0")
	require.NoError(t, err)
	baseURL := startServer(t, s)

	req, err := http.NewRequest(http.MethodGet, baseURL+"/breeds/unicorn/sub-breeds", nil)
	require.NoError(t, err)
	req.Header.Set(microservice.RequestIDHeader, "req-42")

	// Act
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Assert: the access line is written after the response, so poll briefly.
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), `"message":"Request handled."`)
	}, time.Second, 10*time.Millisecond)
	out := logs.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"message":"Lookup failed."`)
	assert.Contains(t, out, `"component":"HTTPServer"`)
}

func TestBreedsServer_StartContextEndsLookups(t *testing.T) {
	// Arrange
	started := make(chan struct{}, 1)
	blocking := breeds.FetcherFunc(func(ctx context.Context, breed string) ([]string, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, breeds.NewNotFoundError(breed, "lookup abandoned", ctx.Err())
	})
	s, err := microservice.NewBreedsServer(blocking, zerolog.Nop(), ":0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	baseURL := startServerCtx(t, s, ctx)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get(baseURL + "/breeds/hound/sub-breeds")
		if err != nil {
			status <- 0
			return
		}
		_ = resp.Body.Close()
		status <- resp.StatusCode
	}()
	<-started

	// Act
	cancel()

	// Assert
	select {
	case code := <-status:
		assert.Equal(t, http.StatusNotFound, code)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup did not end when the server context was cancelled")
	}
}

func TestBaseServer_FailingHealthCheck(t *testing.T) {
	// Arrange
	s := microservice.NewBaseServer(zerolog.Nop(), ":0", func(context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"upstream": "dog.ceo"}, errors.New("upstream unreachable")
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	// Act
	var out map[string]interface{}
	resp := getJSON(t, "http://127.0.0.1"+s.GetHTTPPort()+"/healthz", &out)

	// Assert
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", out["status"])
	assert.Equal(t, "upstream unreachable", out["error"])
	assert.Equal(t, "dog.ceo", out["upstream"])
}

// syncBuffer is a bytes.Buffer safe for the server goroutines to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
