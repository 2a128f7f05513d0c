package gemini

import (
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tax-law-assistant/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client talks to the Gemini REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	opPrefix   string
}

type Options struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	// OperationPrefix names the breakers of this client. Defaults to "gemini".
	OperationPrefix string
}

func New(options Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	opPrefix := strings.TrimSpace(options.OperationPrefix)
	if opPrefix == "" {
		opPrefix = "gemini"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     options.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		opPrefix:   opPrefix,
	}
}

func modelPath(model, method string) string {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return "/models/" + model + ":" + method
}
