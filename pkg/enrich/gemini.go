package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiProvider(ctx context.Context, apiKey string, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	iter := g.client.ListModels(ctx)
	var names []string
	for {
		m, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		// Only list models that support content generation (rough filter)
		if strings.Contains(m.Name, "gemini") {
			// m.Name is like "models/gemini-1.5-flash", we usually want the short form
			names = append(names, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return names, nil
}

func (g *GeminiProvider) Complete(ctx context.Context, history []Message) (string, error) {
	session, last, err := g.session(history)
	if err != nil {
		return "", err
	}

	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

// Stream delivers the completion incrementally. The iterator honors ctx,
// so caller cancellation ends the stream without affecting anything else.
func (g *GeminiProvider) Stream(ctx context.Context, history []Message, onDelta func(string)) error {
	session, last, err := g.session(history)
	if err != nil {
		return err
	}

	iter := session.SendMessageStream(ctx, last...)
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					onDelta(string(t))
				}
			}
		}
	}
}

func (g *GeminiProvider) session(history []Message) (*genai.ChatSession, []genai.Part, error) {
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("empty history")
	}

	var cs []*genai.Content
	for _, msg := range history {
		role := "user"
		if msg.Role == "model" {
			role = "model"
		}
		cs = append(cs, &genai.Content{
			Parts: []genai.Part{genai.Text(msg.Content)},
			Role:  role,
		})
	}

	session := g.model.StartChat()
	session.History = cs[:len(cs)-1]
	return session, cs[len(cs)-1].Parts, nil
}

func (g *GeminiProvider) Close() {
	g.client.Close()
}
