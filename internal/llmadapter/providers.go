package llmadapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/romangod6/catscout/config"
)

// NewProvider selects the transport named by cfg.LLM.Provider (spec.md
// §6's LLM_PROVIDER enum). ProviderRouter reuses the openai_compatible
// transport — an OpenAI-compatible router (LiteLLM, OpenRouter) differs
// from openai only in which host it's pointed at.
func NewProvider(cfg *config.Config) (provider, error) {
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		return newAnthropicProvider(cfg), nil
	case config.ProviderOpenAI, config.ProviderRouter:
		return newOpenAICompatibleProvider(cfg), nil
	case config.ProviderLocal:
		return newLocalProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llmadapter: unrecognized provider %q", cfg.LLM.Provider)
	}
}

// --- anthropic ---------------------------------------------------------

// anthropicProvider wraps the official SDK. Grounded on jmylchreest-
// refyne-api's go.mod, the only pack repo naming this SDK as a direct
// dependency.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg *config.Config) *anthropicProvider {
	model := cfg.LLM.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	return &anthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(cfg.LLM.APIKey)),
		model:  model,
	}
}

func (p *anthropicProvider) name() string { return "anthropic" }

func (p *anthropicProvider) call(ctx context.Context, prompt string, image []byte) (string, error) {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}
	if len(image) > 0 {
		encoded := base64.StdEncoding.EncodeToString(image)
		blocks = append([]anthropic.ContentBlockParamUnion{
			anthropic.NewImageBlockBase64("image/png", encoded),
		}, blocks...)
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		if isAuthOrQuotaErr(err) {
			return "", &fatalProviderError{cause: err}
		}
		return "", err
	}

	var out bytes.Buffer
	for _, block := range msg.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				out.WriteString(tb.Text)
			}
		}
	}
	return out.String(), nil
}

func isAuthOrQuotaErr(err error) bool {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusPaymentRequired
	}
	return false
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if ae, ok := err.(*anthropic.Error); ok {
			*target = ae
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// --- openai-compatible ---------------------------------------------------

// openAICompatibleProvider speaks the OpenAI chat-completions wire
// format over plain net/http. No pack repo imports an OpenAI SDK, and
// the spec's openai_compatible/router arms exist specifically to talk to
// arbitrary compatible endpoints (LiteLLM, vLLM, OpenRouter) by base URL,
// which a fixed SDK client type would fight rather than help; this is
// the internal/normalize-style "no suitable library" case, documented in
// DESIGN.md.
type openAICompatibleProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func newOpenAICompatibleProvider(cfg *config.Config) *openAICompatibleProvider {
	baseURL := cfg.LLM.Host
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.LLM.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &openAICompatibleProvider{
		httpClient: &http.Client{Timeout: RequestTimeout},
		baseURL:    baseURL,
		apiKey:     cfg.LLM.APIKey,
		model:      model,
	}
}

func (p *openAICompatibleProvider) name() string { return "openai_compatible" }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openAICompatibleProvider) call(ctx context.Context, prompt string, image []byte) (string, error) {
	content := []map[string]any{{"type": "text", "text": prompt}}
	if len(image) > 0 {
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
		content = append(content, map[string]any{
			"type":      "image_url",
			"image_url": map[string]string{"url": dataURL},
		})
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:    p.model,
		Messages: []chatMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("openai_compatible: malformed response: %w", err)
	}
	if parsed.Error != nil {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusPaymentRequired {
			return "", &fatalProviderError{cause: fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message)}
		}
		return "", fmt.Errorf("openai_compatible: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai_compatible: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// --- local (Ollama-style) ------------------------------------------------

// localProvider speaks Ollama's /api/generate wire format. Same
// no-suitable-library reasoning as openAICompatibleProvider: there is no
// Ollama client in the pack, and the format is a few fields over plain
// HTTP.
type localProvider struct {
	httpClient *http.Client
	host       string
	model      string
}

func newLocalProvider(cfg *config.Config) *localProvider {
	model := cfg.LLM.Model
	if model == "" {
		model = "llava"
	}
	return &localProvider{
		httpClient: &http.Client{Timeout: RequestTimeout},
		host:       cfg.LLM.Host,
		model:      model,
	}
}

func (p *localProvider) name() string { return "local" }

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (p *localProvider) call(ctx context.Context, prompt string, image []byte) (string, error) {
	reqBody := ollamaGenerateRequest{Model: p.model, Prompt: prompt, Stream: false}
	if len(image) > 0 {
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(image)}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local provider: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("local provider: malformed response: %w", err)
	}
	return parsed.Response, nil
}
