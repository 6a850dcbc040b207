// Package capability implements the external collaborators the Weekly
// Suggester depends on but does not own (§6.4). WebSearch is a narrow,
// language-neutral contract — "a prompt in, zero-or-more text chunks out"
// (GLOSSARY) — realized concretely on top of
// github.com/anthropics/anthropic-sdk-go's server-side web-search tool and
// streaming message API, the same client construction idiom as
// server/server.go's anthropic.NewClient().
package capability

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/brightledger/finance-analytics-core/internal/errs"
)

// Chunk is one streamed text delta from the underlying model call. The
// concatenation of all chunks in a Search call is the capability's final
// text response (GLOSSARY: Capability chunk).
type Chunk struct {
	Text string
}

// Search is the narrow contract the Weekly Suggester depends on: a prompt
// in, chunks delivered to a callback as they arrive, and a final
// accumulated response returned once the call completes.
type Search interface {
	// Run streams chunks to onChunk as they arrive and returns the final
	// accumulated text plus the number of backend search calls the model
	// made (folded into mcp_calls_made, §4.6.1 step 4). Run must respect
	// ctx cancellation at every suspension point.
	Run(ctx context.Context, model, prompt string, onChunk func(Chunk)) (final string, searchCalls int, err error)
}

// WebSearch is the anthropic-sdk-go-backed implementation of Search.
type WebSearch struct {
	client anthropic.Client
}

// NewWebSearch builds a WebSearch capability. The API key is read from the
// environment by anthropic.NewClient, matching server/server.go's idiom;
// config.Config.AnthropicAPIKey is exported to the process environment by
// the caller during start-up.
func NewWebSearch() *WebSearch {
	return &WebSearch{client: anthropic.NewClient()}
}

const maxSearchUses = 5

// Run implements Search using the SDK's streaming message API with the
// server-side web_search_20250305 tool enabled. Each ContentBlockDelta
// text event maps to one Chunk (§4.6.4's `progress` event payload); the
// number of server_tool_use blocks for web_search is the capability's
// search-call count.
func (w *WebSearch) Run(ctx context.Context, model, prompt string, onChunk func(Chunk)) (string, int, error) {
	stream := w.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
				Name:    "web_search",
				MaxUses: anthropic.Int(maxSearchUses),
			}},
		},
	})

	var message anthropic.Message
	var builder []byte
	searchCalls := 0

	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return "", searchCalls, errs.Wrap(errs.CapabilityUnavailable, "accumulate stream event", err)
		}

		switch delta := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
				builder = append(builder, textDelta.Text...)
				if onChunk != nil {
					onChunk(Chunk{Text: textDelta.Text})
				}
			}
		case anthropic.ContentBlockStartEvent:
			if _, ok := delta.ContentBlock.AsAny().(anthropic.ServerToolUseBlock); ok {
				searchCalls++
			}
		}

		select {
		case <-ctx.Done():
			return "", searchCalls, errs.Wrap(errs.Cancelled, "web search cancelled", ctx.Err())
		default:
		}
	}

	if err := stream.Err(); err != nil {
		return "", searchCalls, classifyStreamError(err)
	}

	return string(builder), searchCalls, nil
}

// classifyStreamError distinguishes quota errors (terminal, no retry) from
// transport errors (retried once by the pipeline), per §4.6.5.
func classifyStreamError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return errs.Wrap(errs.CapabilityQuota, "web search rate limited", err)
		}
	}
	return errs.Wrap(errs.CapabilityUnavailable, "web search transport error", err)
}
