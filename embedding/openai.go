package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/time/rate"
)

// Config holds OpenAI client settings, typically populated from the
// environment via ConfigFromEnv.
type Config struct {
	APIKey    string        `envconfig:"API_KEY"`
	BaseURL   string        `envconfig:"BASE_URL" default:"https://api.openai.com/v1"`
	Model     string        `envconfig:"MODEL" default:"text-embedding-3-small"`
	Dimension int           `envconfig:"DIMENSION" default:"1536"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"60s"`

	// RequestsPerSecond caps the outbound request rate. Zero disables
	// client-side limiting.
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND"`
}

// ConfigFromEnv reads the client configuration from OPENAI_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("openai", &cfg); err != nil {
		return Config{}, fmt.Errorf("read embedding config: %w", err)
	}
	return cfg, nil
}

// OpenAIOptions customize the OpenAI client beyond its Config.
type OpenAIOptions struct {
	// HTTPClient overrides the default client. Its timeout is respected
	// as-is when set.
	HTTPClient *http.Client
}

// OpenAI is an Embedder backed by an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAI creates a new OpenAI embedding client.
func NewOpenAI(cfg Config, optFns ...func(o *OpenAIOptions)) (*OpenAI, error) {
	opts := OpenAIOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model must be set")
	}

	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &OpenAI{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
	}, nil
}

// Dimension returns the configured embedding dimensionality.
func (o *OpenAI) Dimension() int {
	return o.cfg.Dimension
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests an embedding vector for the given text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(embeddingRequest{
		Model:      o.cfg.Model,
		Input:      text,
		Dimensions: o.cfg.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	vec := result.Data[0].Embedding
	if len(vec) != o.cfg.Dimension {
		return nil, fmt.Errorf("provider returned %d-dimensional vector, expected %d", len(vec), o.cfg.Dimension)
	}

	return vec, nil
}
