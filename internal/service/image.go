package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

const (
	maxImageAttempts  = 3
	imageBackoffStart = 750 * time.Millisecond
	imageBackoffMax   = 8 * time.Second
)

// optional request fields that may be dropped when a model rejects them
var droppableImageParams = map[string]bool{
	"response_format": true,
	"quality":         true,
	"style":           true,
}

var quotedParam = regexp.MustCompile(`[Pp]arameter:?\s*'([a-z_]+)'`)

// ImageGenerationResponse represents the response from the images API
type ImageGenerationResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url,omitempty"`
		B64JSON       string `json:"b64_json,omitempty"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ImageService generates images through the OpenAI images API.
// Outbound calls are limited per process by a weighted semaphore.
type ImageService struct {
	apiKey        string
	apiURL        string
	model         string
	fallbackModel string
	size          string
	client        *http.Client
	slots         *semaphore.Weighted
	backoff       time.Duration
	maxBackoff    time.Duration
	log           *logrus.Entry
}

// NewImageService creates a new ImageService instance
func NewImageService(cfg *config.Config, httpClient *http.Client) *ImageService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	slots := cfg.ImageGenMaxConcurrency
	if slots < 1 {
		slots = 1
	}
	return &ImageService{
		apiKey:        cfg.OpenAIAPIKey,
		apiURL:        strings.TrimRight(cfg.OpenAIBaseURL, "/") + "/images/generations",
		model:         cfg.ImageModel,
		fallbackModel: cfg.ImageFallbackModel,
		size:          cfg.ImageSize,
		client:        httpClient,
		slots:         semaphore.NewWeighted(int64(slots)),
		backoff:       imageBackoffStart,
		maxBackoff:    imageBackoffMax,
		log:           logger.Component("imagegen"),
	}
}

// Generate renders prompt into image bytes. It waits for a free generation
// slot, then retries transient failures with exponential backoff.
func (s *ImageService) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for image generation slot: %w", err)
	}
	defer s.slots.Release(1)

	model := s.model
	dropped := map[string]bool{}
	paramRetried := false
	switchedModel := false
	delay := s.backoff

	for attempt := 1; ; {
		data, err := s.generateAttempt(ctx, model, prompt, dropped)
		if err == nil {
			return data, nil
		}

		var upErr *UpstreamError
		if !errors.As(err, &upErr) {
			return nil, err
		}

		if param := unsupportedParam(upErr); param != "" && !paramRetried {
			paramRetried = true
			dropped[param] = true
			s.log.WithFields(logrus.Fields{"model": model, "param": param}).Info("retrying without unsupported parameter")
			continue
		}

		if requiresVerification(upErr) && !switchedModel && s.fallbackModel != "" && s.fallbackModel != model {
			switchedModel = true
			s.log.WithFields(logrus.Fields{"model": model, "fallback": s.fallbackModel}).Warn("model requires verified organization, switching")
			model = s.fallbackModel
			dropped = map[string]bool{}
			continue
		}

		if !upErr.Retryable() || attempt >= maxImageAttempts {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"status":  upErr.StatusCode,
			"delay":   delay,
		}).Warn("image generation failed, backing off")

		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
		if delay > s.maxBackoff {
			delay = s.maxBackoff
		}
		attempt++
	}
}

// generateAttempt performs a single image generation request
func (s *ImageService) generateAttempt(ctx context.Context, model, prompt string, dropped map[string]bool) ([]byte, error) {
	reqBody := map[string]interface{}{
		"model":           model,
		"prompt":          prompt,
		"n":               1,
		"size":            s.size,
		"quality":         "standard",
		"response_format": "b64_json",
	}
	if strings.HasPrefix(model, "gpt-image") {
		reqBody["quality"] = "medium"
	}
	for param := range dropped {
		delete(reqBody, param)
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{Service: "openai-images", Payload: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Service: "openai-images", Payload: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "openai-images", StatusCode: resp.StatusCode, Payload: string(body)}
	}

	var result ImageGenerationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, &UpstreamError{Service: "openai-images", StatusCode: resp.StatusCode, Payload: "no image data in response"}
	}

	if b64 := result.Data[0].B64JSON; b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image payload: %w", err)
		}
		return data, nil
	}
	if url := result.Data[0].URL; url != "" {
		return s.download(ctx, url)
	}
	return nil, &UpstreamError{Service: "openai-images", StatusCode: resp.StatusCode, Payload: "response carried neither b64_json nor url"}
}

// download fetches a generated image the API returned by URL
func (s *ImageService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "openai-images", Payload: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "openai-images", StatusCode: resp.StatusCode, Payload: "image download failed"}
	}
	return io.ReadAll(resp.Body)
}

// unsupportedParam returns the droppable parameter a 400 response rejected, if any
func unsupportedParam(err *UpstreamError) string {
	if err.StatusCode != http.StatusBadRequest {
		return ""
	}
	var body apiErrorBody
	_ = json.Unmarshal([]byte(err.Payload), &body)

	msg := strings.ToLower(body.Error.Message)
	if msg == "" {
		msg = strings.ToLower(err.Payload)
	}
	if body.Error.Code != "unknown_parameter" && body.Error.Code != "unsupported_parameter" &&
		!strings.Contains(msg, "unsupported parameter") && !strings.Contains(msg, "unknown parameter") {
		return ""
	}

	param := body.Error.Param
	if param == "" {
		if m := quotedParam.FindStringSubmatch(body.Error.Message + err.Payload); m != nil {
			param = m[1]
		}
	}
	if !droppableImageParams[param] {
		return ""
	}
	return param
}

// requiresVerification reports whether the model is gated behind organization verification
func requiresVerification(err *UpstreamError) bool {
	if err.StatusCode != http.StatusBadRequest && err.StatusCode != http.StatusForbidden {
		return false
	}
	return strings.Contains(strings.ToLower(err.Payload), "must be verified")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildMealImagePrompt creates a food photography prompt for a meal
func BuildMealImagePrompt(title string, keyIngredients []string) string {
	prompt := "A professional food photography shot of " + strings.ToLower(strings.TrimSpace(title))

	if len(keyIngredients) > 0 {
		shown := keyIngredients
		if len(shown) > 6 {
			shown = shown[:6]
		}
		prompt += ", made with " + strings.Join(shown, ", ")
	}

	prompt += ", shot with natural lighting, shallow depth of field, restaurant quality presentation, appetizing colors, no text"

	if len(prompt) > 900 {
		prompt = prompt[:900]
	}
	return prompt
}
