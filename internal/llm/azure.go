package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// AzureModel adapts an Azure OpenAI deployment to llms.Model.
type AzureModel struct {
	client         *azopenai.Client
	deploymentName string
}

var _ llms.Model = (*AzureModel)(nil)

// NewAzureModel creates a model bound to one Azure deployment
func NewAzureModel(endpoint, apiKey, deploymentName string) (*AzureModel, error) {
	if endpoint == "" || apiKey == "" || deploymentName == "" {
		return nil, errors.New("azure openai configuration missing: endpoint, key and deployment are required")
	}

	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure OpenAI client: %w", err)
	}
	return &AzureModel{client: client, deploymentName: deploymentName}, nil
}

// Call implements the deprecated single-prompt entry point.
func (m *AzureModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// GenerateContent sends the conversation as one user turn. A streaming
// callback, if set, receives the whole answer as a single chunk.
func (m *AzureModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}

	req := azopenai.ChatCompletionsOptions{
		Messages: []azopenai.ChatRequestMessageClassification{
			&azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(flatten(messages)),
			},
		},
		DeploymentName: to.Ptr(m.deploymentName),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = to.Ptr(int32(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		req.Temperature = to.Ptr(float32(opts.Temperature))
	}

	resp, err := m.client.GetChatCompletions(ctx, req, nil)
	if err != nil {
		return nil, fmt.Errorf("Azure OpenAI completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return nil, errors.New("empty response from Azure OpenAI")
	}

	text := *resp.Choices[0].Message.Content
	if opts.StreamingFunc != nil {
		if err := opts.StreamingFunc(ctx, []byte(text)); err != nil {
			return nil, err
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

// flatten renders a multi-role conversation as labelled plain text.
func flatten(messages []llms.MessageContent) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		var text strings.Builder
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				text.WriteString(tc.Text)
			}
		}
		if len(messages) == 1 {
			b.WriteString(text.String())
			continue
		}
		switch msg.Role {
		case schema.ChatMessageTypeSystem:
			b.WriteString("Instructions:\n")
		case schema.ChatMessageTypeAI:
			b.WriteString("Assistant:\n")
		default:
			b.WriteString("User:\n")
		}
		b.WriteString(text.String())
	}
	return b.String()
}
