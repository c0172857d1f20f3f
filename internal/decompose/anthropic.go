package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// ClaudePlannerConfig contains configuration for the Claude-backed planner.
type ClaudePlannerConfig struct {
	// Model is the Claude model to use.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// ClaudePlanner implements Planner using the Anthropic API.
type ClaudePlanner struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudePlanner creates a Claude-backed planner.
func NewClaudePlanner(cfg ClaudePlannerConfig) (*ClaudePlanner, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		ctx := context.Background()

		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	return &ClaudePlanner{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Decompose asks Claude to break the request into task specs.
func (p *ClaudePlanner) Decompose(ctx context.Context, request, actorID string) ([]TaskSpec, error) {
	prompt := fmt.Sprintf(decompositionPrompt, request)

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner API call: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return ParseResponse(text.String())
}

// ParseResponse extracts the JSON task array from a model response.
// Tolerates prose or code fences around the array.
func ParseResponse(response string) ([]TaskSpec, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("no JSON array found in planner response (got %d chars): %q", len(response), preview)
	}

	var specs []TaskSpec
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &specs); err != nil {
		return nil, fmt.Errorf("unmarshal planner response: %w", err)
	}

	return specs, nil
}
