package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	appErr "github.com/xxxsen/livinglib/internal/pkg/errors"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiEmbedProvider struct {
	apiKey string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func (p *geminiEmbedProvider) Name() string {
	return "gemini"
}

func (p *geminiEmbedProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.initErr
}

func (p *geminiEmbedProvider) Embed(ctx context.Context, in *EmbedRequest) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("gemini api key missing: %w", appErr.ErrUnavailable)
	}
	if len(in.Texts) == 0 {
		return nil, nil
	}
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &genai.EmbedContentConfig{TaskType: in.TaskType}
	if in.Dimension > 0 {
		dim := int32(in.Dimension)
		config.OutputDimensionality = &dim
	}
	contents := make([]*genai.Content, 0, len(in.Texts))
	for _, text := range in.Texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := client.Models.EmbedContent(ctx, in.Model, contents, config)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(in.Texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(in.Texts))
	}
	vecs := make([][]float32, 0, len(resp.Embeddings))
	for _, item := range resp.Embeddings {
		if item == nil {
			return nil, fmt.Errorf("no embedding values returned")
		}
		vecs = append(vecs, item.Values)
	}
	return vecs, nil
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiEmbedProvider{
		apiKey: strings.TrimSpace(cfg.APIKey),
	}, nil
}

func init() {
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
