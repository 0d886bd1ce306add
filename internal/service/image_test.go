package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
)

type imageCall struct {
	Model  string
	Params map[string]interface{}
}

type fakeImagesAPI struct {
	mu     sync.Mutex
	calls  []imageCall
	handle func(call imageCall, n int) (int, string)
}

func (f *fakeImagesAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&params)
	call := imageCall{Params: params}
	call.Model, _ = params["model"].(string)

	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()

	status, body := f.handle(call, n)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func b64Reply(data string) string {
	return `{"created":1,"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString([]byte(data)) + `"}]}`
}

func newTestImageService(t *testing.T, api http.Handler) *ImageService {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	svc := NewImageService(&config.Config{
		OpenAIAPIKey:           "test-key",
		OpenAIBaseURL:          server.URL,
		ImageModel:             "gpt-image-1",
		ImageFallbackModel:     "dall-e-3",
		ImageSize:              "1024x1024",
		ImageGenMaxConcurrency: 1,
	}, server.Client())
	svc.backoff = time.Millisecond
	svc.maxBackoff = 4 * time.Millisecond
	return svc
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	api := &fakeImagesAPI{handle: func(_ imageCall, n int) (int, string) {
		switch n {
		case 1:
			return http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`
		case 2:
			return http.StatusBadGateway, `{"error":{"message":"upstream"}}`
		}
		return http.StatusOK, b64Reply("image-bytes")
	}}
	svc := newTestImageService(t, api)

	data, err := svc.Generate(context.Background(), "a bowl of soup")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Len(t, api.calls, 3)
}

func TestGenerateStopsAfterThreeAttempts(t *testing.T) {
	api := &fakeImagesAPI{handle: func(_ imageCall, _ int) (int, string) {
		return http.StatusServiceUnavailable, `{"error":{"message":"down"}}`
	}}
	svc := newTestImageService(t, api)

	_, err := svc.Generate(context.Background(), "soup")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
	assert.Len(t, api.calls, maxImageAttempts)
}

func TestGenerateDropsUnsupportedParameterOnce(t *testing.T) {
	api := &fakeImagesAPI{handle: func(call imageCall, _ int) (int, string) {
		if _, ok := call.Params["response_format"]; ok {
			return http.StatusBadRequest, `{"error":{"message":"Unknown parameter: 'response_format'.","type":"invalid_request_error","param":"response_format","code":"unknown_parameter"}}`
		}
		return http.StatusOK, b64Reply("ok")
	}}
	svc := newTestImageService(t, api)

	data, err := svc.Generate(context.Background(), "tacos")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	require.Len(t, api.calls, 2)
	assert.NotContains(t, api.calls[1].Params, "response_format")
}

func TestGenerateFallsBackWhenModelNeedsVerification(t *testing.T) {
	api := &fakeImagesAPI{handle: func(call imageCall, _ int) (int, string) {
		if call.Model == "gpt-image-1" {
			return http.StatusForbidden, `{"error":{"message":"Your organization must be verified to use the model gpt-image-1."}}`
		}
		return http.StatusOK, b64Reply("fallback")
	}}
	svc := newTestImageService(t, api)

	data, err := svc.Generate(context.Background(), "pancakes")
	require.NoError(t, err)
	assert.Equal(t, "fallback", string(data))
	require.Len(t, api.calls, 2)
	assert.Equal(t, "dall-e-3", api.calls[1].Model)
}

func TestGenerateDownloadsURLResponses(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"url":"` + server.URL + `/files/1.png"}]}`))
	})
	mux.HandleFunc("/files/1.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("downloaded"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	svc := NewImageService(&config.Config{
		OpenAIBaseURL:          server.URL,
		ImageModel:             "dall-e-3",
		ImageGenMaxConcurrency: 1,
	}, server.Client())

	data, err := svc.Generate(context.Background(), "pie")
	require.NoError(t, err)
	assert.Equal(t, "downloaded", string(data))
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	api := &fakeImagesAPI{handle: func(_ imageCall, _ int) (int, string) {
		return http.StatusBadRequest, `{"error":{"message":"prompt rejected by safety system"}}`
	}}
	svc := newTestImageService(t, api)

	_, err := svc.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Len(t, api.calls, 1)
}

func TestGenerateLimitsConcurrentCalls(t *testing.T) {
	var inFlight, peak atomic.Int32
	api := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = w.Write([]byte(b64Reply("img")))
	})
	svc := newTestImageService(t, api)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), "salad")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
}

func TestBuildMealImagePrompt(t *testing.T) {
	prompt := BuildMealImagePrompt("Chicken Stir Fry", []string{"chicken", "broccoli"})
	assert.Contains(t, prompt, "chicken stir fry")
	assert.Contains(t, prompt, "made with chicken, broccoli")
}
