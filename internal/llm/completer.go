// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm is the boundary to the chat-completion model: a strict request
// and reply contract, retries with backoff, and client-side rate limiting.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bcem/mail2do/internal/config"
)

const cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// Request is one bounded model call.
type Request struct {
	Purpose string // metrics label, e.g. "extract" or "deadline"
	System  string
	User    string
}

// Completer sends a request and returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// LangChainCompleter talks to OpenAI or Azure OpenAI through langchaingo.
type LangChainCompleter struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewLangChainCompleter builds a completer for the configured provider.
// For "azure_ad" the HTTP client obtains tokens with client credentials.
func NewLangChainCompleter(ctx context.Context, cfg config.ModelConfig) (*LangChainCompleter, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Deployment),
	}

	switch cfg.Provider {
	case "openai":
		opts = append(opts, openai.WithToken(cfg.APIKey))
		if cfg.Endpoint != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
		}
	case "azure":
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/")),
			openai.WithAPIVersion(cfg.APIVersion),
			openai.WithToken(cfg.APIKey),
		)
	case "azure_ad":
		opts = append(opts,
			openai.WithAPIType(openai.APITypeAzureAD),
			openai.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/")),
			openai.WithAPIVersion(cfg.APIVersion),
			// The oauth2 transport replaces the Authorization header.
			openai.WithToken("aad"),
			openai.WithHTTPClient(NewHTTPClient(ctx, cfg)),
		)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	return &LangChainCompleter{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// NewHTTPClient returns an HTTP client that authenticates with Azure AD
// client credentials.
func NewHTTPClient(ctx context.Context, cfg config.ModelConfig) *http.Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{cognitiveServicesScope},
	}
	return cc.Client(ctx)
}

// Complete sends the system and user messages and returns the first choice.
func (c *LangChainCompleter) Complete(ctx context.Context, req Request) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}

	resp, err := c.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
