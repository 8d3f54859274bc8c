package translate

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const openaiSystemPrompt = "You are a professional translator. Output only the translated text, without quotes or explanations."

// OpenAI translates with a chat completion model.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend. baseURL may point at any
// OpenAI-compatible server.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

func (o *OpenAI) Name() string { return "openai:" + o.model }

func (o *OpenAI) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openaiSystemPrompt),
			openai.UserMessage(buildPrompt(text, source, target)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(text, source, target string) string {
	return fmt.Sprintf(
		"please translate the following text from %s to %s:\n\n%s",
		languageName(source), languageName(target), text,
	)
}

// languageName renders a code like "zh-TW" as an English language name.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
