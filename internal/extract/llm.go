package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

// maxPromptRunes caps the article text sent to a hosted model.
const maxPromptRunes = 12000

const summarySystemPrompt = `You summarize news articles for a search index.
Write a neutral summary of at most %d sentences using only facts stated in the article.
Reply with the summary text only, without headings, lists or quotation marks.`

func summaryPrompt(page Page) string {
	text := []rune(strings.TrimSpace(page.Text))
	if len(text) > maxPromptRunes {
		text = text[:maxPromptRunes]
	}
	return fmt.Sprintf("Title: %s\n\nArticle:\n%s", page.Title, string(text))
}

// OpenAISummarizer asks an OpenAI chat model for the summary.
type OpenAISummarizer struct {
	client    *openai.Client
	model     openai.ChatModel
	sentences int
}

// NewOpenAISummarizer builds a summarizer for model. Extra request options
// are appended after the API key.
func NewOpenAISummarizer(apiKey, model string, sentences int, opts ...openaioption.RequestOption) *OpenAISummarizer {
	if sentences <= 0 {
		sentences = DefaultSentences
	}
	client := openai.NewClient(append([]openaioption.RequestOption{openaioption.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAISummarizer{
		client:    &client,
		model:     openai.ChatModel(model),
		sentences: sentences,
	}
}

// Summarize returns "" without calling the API when the page has no text.
func (s *OpenAISummarizer) Summarize(ctx context.Context, page Page) (string, error) {
	if strings.TrimSpace(page.Text) == "" {
		return "", nil
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(summarySystemPrompt, s.sentences)),
			openai.UserMessage(summaryPrompt(page)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// AnthropicSummarizer asks a Claude model for the summary.
type AnthropicSummarizer struct {
	client    *anthropic.Client
	model     anthropic.Model
	sentences int
}

// NewAnthropicSummarizer builds a summarizer for model. Extra request
// options are appended after the API key.
func NewAnthropicSummarizer(apiKey, model string, sentences int, opts ...anthropicoption.RequestOption) *AnthropicSummarizer {
	if sentences <= 0 {
		sentences = DefaultSentences
	}
	client := anthropic.NewClient(append([]anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicSummarizer{
		client:    &client,
		model:     anthropic.Model(model),
		sentences: sentences,
	}
}

// Summarize returns "" without calling the API when the page has no text.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, page Page) (string, error) {
	if strings.TrimSpace(page.Text) == "" {
		return "", nil
	}

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: fmt.Sprintf(summarySystemPrompt, s.sentences)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(summaryPrompt(page))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	if len(parts) == 0 {
		return "", errors.New("no response from anthropic")
	}

	return strings.Join(parts, "\n"), nil
}
