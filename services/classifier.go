package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/szabolcsnagy0/kindly/config"
)

// CategoryClassifier picks the category names that fit a free-text description.
type CategoryClassifier interface {
	Classify(ctx context.Context, description string, categories []string) ([]string, error)
}

type chatCompleter func(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)

// OpenAIClassifier asks an OpenAI compatible chat endpoint for matching categories.
type OpenAIClassifier struct {
	model    string
	complete chatCompleter
}

// NewOpenAIClassifier returns nil when the endpoint is not configured.
func NewOpenAIClassifier(cfg config.AI) *OpenAIClassifier {
	if !cfg.Configured() {
		return nil
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.URL),
	)
	return &OpenAIClassifier{model: cfg.Model, complete: client.Chat.Completions.New}
}

func categoryPrompt(description string, categories []string) string {
	return fmt.Sprintf(`The user has provided the following description for a request:
"%s"

Please choose the most relevant categories from the following list:
%s

Return a comma-separated list of the chosen category names.`, description, strings.Join(categories, ", "))
}

func (c *OpenAIClassifier) Classify(ctx context.Context, description string, categories []string) ([]string, error) {
	resp, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(categoryPrompt(description, categories)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	return splitCategoryNames(resp.Choices[0].Message.Content), nil
}

func splitCategoryNames(content string) []string {
	var names []string
	for _, part := range strings.Split(content, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
