// Package llm provides the reasoning engine and embedding clients using
// langchaingo.
package llm

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/partvoice-go/internal/config"
)

// Model wraps a langchaingo LLM for command routing and feature labeling.
type Model struct {
	llm       llms.Model
	modelName string
	timeout   time.Duration
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		}
		// Proxy deployments route through a custom base URL.
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.AnthropicBaseURL))
		}
		model, err = anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx)
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
		timeout:   timeout,
	}, nil
}

// GenerateWithSystem generates text with a system prompt. The call is
// bounded by the configured request timeout.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	response, err := m.llm.GenerateContent(callCtx, messages)
	if err != nil {
		return "", wrapFatalError(fmt.Errorf("generate with system: %w", err))
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return response.Choices[0].Content, nil
}

// InterpretCommand asks the reasoning engine to map a spoken command onto
// the fixed operation schema. catalog describes the supported feature types
// and their parameters, history is the retrieved part context (may be
// empty), and intent is the user's command verbatim. The response is the
// raw structured text; the interpreter parses and validates it.
func (m *Model) InterpretCommand(ctx context.Context, catalog, history, intent string) (string, error) {
	systemPrompt := fmt.Sprintf(`You are a CAD voice-command router. Classify the user's spoken command
into exactly ONE of the supported feature operations and extract its parameters.

Supported operations:
%s

Respond with ONLY a single JSON object, no prose, no code fences:
{"feature_type": "<type>", "parameters": {<name>: <value>, ...}, "label": "<2-5 word feature label>"}

Rules:
- All lengths in meters. Convert spoken units ("5cm", "10 millimetres") yourself.
- If the user did not specify numeric values, use the operation's documented defaults.
- If the user asks what has been done so far, respond with feature_type "recall" and empty parameters.

Examples:
  "draw a circle 5cm radius" -> {"feature_type": "sketch-circle", "parameters": {"cx": 0, "cy": 0, "radius": 0.05}, "label": "Base Circle Sketch"}
  "extrude 10 millimetres" -> {"feature_type": "extrude", "parameters": {"depth": 0.01}, "label": "Main Body Extrude"}
  "what have I done so far" -> {"feature_type": "recall", "parameters": {}, "label": ""}`, catalog)

	if history != "" {
		systemPrompt += fmt.Sprintf("\n\nPart history for context (most relevant first):\n%s", history)
	}

	return m.GenerateWithSystem(ctx, systemPrompt, intent)
}

// LabelFeature asks the reasoning engine for a short descriptive feature
// label suitable for a CAD feature tree.
func (m *Model) LabelFeature(ctx context.Context, featureType, intent, params, history string) (string, error) {
	systemPrompt := `You are a CAD feature naming assistant. Generate a short (2-5 word)
descriptive label for a feature that would make sense in a feature tree.
Respond with ONLY the label, nothing else.
Examples: 'Base Plate Sketch', 'Main Body Extrude', 'Edge Fillet 5mm'`

	userPrompt := fmt.Sprintf("Feature type: %s\nUser's command: %q\nParameters: %s\n", featureType, intent, params)
	if history != "" {
		userPrompt += fmt.Sprintf("\nExisting part history:\n%s\n", history)
	}

	return m.GenerateWithSystem(ctx, systemPrompt, userPrompt)
}

// DeterministicLabel is the fallback label used when label generation
// fails: the feature type plus the operation timestamp.
func DeterministicLabel(featureType string, ts time.Time) string {
	return fmt.Sprintf("%s %s", featureType, ts.UTC().Format("2006-01-02 15:04:05"))
}
