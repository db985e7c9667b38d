package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"reelgate/internal/llm"
	"reelgate/internal/stage"
)

// Completer issues one JSON-only chat completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const llmSystemPrompt = "You write material for short educational YouTube videos. " +
	"Respond with a single JSON object that matches the requested shape. Do not add commentary."

// LLMAgent generates the text stages through a chat completion endpoint.
type LLMAgent struct {
	Stage  stage.Name
	Client Completer
	// Label names the endpoint in health output.
	Label string
}

func (a *LLMAgent) Generate(ctx context.Context, req Request) (stage.Payload, error) {
	if a.Client == nil {
		return nil, errors.New("llm client not configured")
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, errors.New("topic is empty")
	}
	prompt, err := llmPrompt(req.Stage, topic, req)
	if err != nil {
		return nil, err
	}
	content, err := a.Client.CompleteJSON(ctx, llmSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	switch req.Stage {
	case stage.Research:
		var out stage.ResearchPayload
		if err := llm.DecodeJSON(content, &out); err != nil {
			return nil, fmt.Errorf("decode research: %w", err)
		}
		return out, nil
	case stage.Script:
		var out stage.ScriptPayload
		if err := llm.DecodeJSON(content, &out); err != nil {
			return nil, fmt.Errorf("decode script: %w", err)
		}
		return out, nil
	default:
		var out stage.MetadataPayload
		if err := llm.DecodeJSON(content, &out); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		return out, nil
	}
}

func (a *LLMAgent) Health(context.Context) stage.Health {
	name := string(a.Stage)
	if a.Client == nil {
		return stage.Unhealthy(name, "llm client not configured")
	}
	return stage.Health{Name: name, Ready: true, Detail: "llm " + a.Label}
}

func llmPrompt(name stage.Name, topic string, req Request) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	switch name {
	case stage.Research:
		b.WriteString("Research this topic for a five minute explainer video. Return JSON shaped as\n")
		b.WriteString(`{"summary": "two or three sentences", "key_points": ["5 to 7 factual points"], "sources": ["optional references"]}`)
	case stage.Script:
		if research, ok := Upstream[stage.ResearchPayload](req, stage.Research); ok {
			b.WriteString("Approved research:\n")
			writeJSONBlock(&b, research)
		}
		b.WriteString("Write a narration script with one segment per key point. Return JSON shaped as\n")
		b.WriteString(`{"intro": "hook", "segments": [{"heading": "...", "narration": "..."}], "outro": "closing line"}`)
	case stage.Metadata:
		if script, ok := Upstream[stage.ScriptPayload](req, stage.Script); ok {
			b.WriteString("Approved script:\n")
			writeJSONBlock(&b, script)
		}
		b.WriteString("Write search-friendly publish metadata. Return JSON shaped as\n")
		b.WriteString(`{"title": "under 70 characters", "description": "two short paragraphs", "tags": ["up to 10 tags"], "keywords": ["search keywords"]}`)
	default:
		return "", fmt.Errorf("llm generator does not support stage %q", name)
	}
	return b.String(), nil
}

func writeJSONBlock(b *strings.Builder, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	b.Write(data)
	b.WriteString("\n\n")
}
