package enrich

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
)

type AzureProvider struct {
	client     *azopenai.Client
	deployment string
}

func NewAzureProvider(endpoint, apiKey, deployment string) (*AzureProvider, error) {
	if endpoint == "" || deployment == "" {
		return nil, fmt.Errorf("azure provider requires endpoint and deployment")
	}
	keyCredential := azcore.NewKeyCredential(apiKey)
	client, err := azopenai.NewClientWithKeyCredential(endpoint, keyCredential, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating Azure OpenAI client: %v", err)
	}
	return &AzureProvider{client: client, deployment: deployment}, nil
}

// ListModels returns the configured deployment; Azure OpenAI scopes the
// account to explicit deployments rather than a model catalog.
func (p *AzureProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{p.deployment}, nil
}

func (p *AzureProvider) Complete(ctx context.Context, history []Message) (string, error) {
	var messages []azopenai.ChatRequestMessageClassification
	for _, m := range history {
		switch m.Role {
		case "system":
			messages = append(messages, &azopenai.ChatRequestSystemMessage{
				Content: azopenai.NewChatRequestSystemMessageContent(m.Content),
			})
		case "model":
			messages = append(messages, &azopenai.ChatRequestAssistantMessage{
				Content: azopenai.NewChatRequestAssistantMessageContent(m.Content),
			})
		default:
			messages = append(messages, &azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(m.Content),
			})
		}
	}

	resp, err := p.client.GetChatCompletions(
		ctx,
		azopenai.ChatCompletionsOptions{
			DeploymentName: to.Ptr(p.deployment),
			Messages:       messages,
		},
		nil,
	)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil && resp.Choices[0].Message.Content != nil {
		return *resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("no completion received from LLM")
}
