package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is the vision model used when no override is given.
const DefaultModel = "gpt-5-mini"

// maxResponseTokens caps the oracle's reply; the line protocol needs far
// less than this.
const maxResponseTokens = 1000

// Provider implements Estimator against an OpenAI-compatible chat
// completions API with image input.
type Provider struct {
	client openai.Client
	model  string
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel overrides the vision model.
func WithModel(model string) ProviderOption {
	return func(c *providerConfig) {
		c.model = model
	}
}

// WithBaseURL points the provider at an OpenAI-compatible endpoint, such as
// a proxy or a local model server.
func WithBaseURL(baseURL string) ProviderOption {
	return func(c *providerConfig) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(c *providerConfig) {
		c.httpClient = client
	}
}

// NewProvider builds an OpenAI-backed estimator. An empty apiKey falls back
// to the OPENAI_API_KEY environment variable.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("vision: API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	cfg := providerConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &Provider{client: openai.NewClient(reqOpts...), model: cfg.model}, nil
}

// EstimateRegion sends the screen and description to the vision model and
// parses its percentage-space answer. Any transport or protocol failure,
// including a ctx timeout, surfaces as ErrUnavailable; the call is never
// retried here.
func (p *Provider) EstimateRegion(ctx context.Context, img image.Image, description string) (Estimate, error) {
	if img == nil {
		return Estimate{}, fmt.Errorf("%w: nil screen image", ErrUnavailable)
	}
	dataURL, err := EncodeImage(img)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: encode screen: %v", ErrUnavailable, err)
	}

	b := img.Bounds()
	prompt := locatePrompt(description, b.Dx(), b.Dy())

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxTokens: openai.Int(maxResponseTokens),
	})
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Estimate{}, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return parseEstimate(resp.Choices[0].Message.Content)
}

// EncodeImage encodes an image as a base64 PNG data URL, the form the chat
// completions image input expects.
func EncodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// locatePrompt asks the model for an element's location as percentages of
// the screen, in a fixed line protocol parseEstimate understands.
func locatePrompt(description string, screenWidth, screenHeight int) string {
	return fmt.Sprintf(`Find the %q on this screen.

Screen size: %dx%d pixels

Provide the estimated location as percentages from top-left corner (0,0):
- LEFT: percentage from left edge (0-100)
- TOP: percentage from top edge (0-100)
- WIDTH: percentage of screen width (0-100)
- HEIGHT: percentage of screen height (0-100)

Format your response EXACTLY like this:
ELEMENT: [name of the element]
LEFT: [number]
TOP: [number]
WIDTH: [number]
HEIGHT: [number]
CONFIDENCE: [low/medium/high]

Be as precise as possible.`, description, screenWidth, screenHeight)
}
