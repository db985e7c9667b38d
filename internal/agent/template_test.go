package agent_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reelgate/internal/agent"
	"reelgate/internal/stage"
	"reelgate/internal/testsupport"
)

func TestTemplateAgentRunsWholePipeline(t *testing.T) {
	videosDir := t.TempDir()
	a := &agent.TemplateAgent{VideosDir: videosDir}
	ctx := context.Background()
	upstream := map[stage.Name]stage.Payload{}

	for _, name := range stage.Order() {
		payload, err := a.Generate(ctx, agent.Request{
			WorkflowID: "0b7f3c1e-aaaa-bbbb-cccc-000000000001",
			Topic:      "Ocean Tides",
			Stage:      name,
			Upstream:   upstream,
		})
		if err != nil {
			t.Fatalf("%s: generate: %v", name, err)
		}
		if payload.Stage() != name {
			t.Fatalf("%s: got payload for %s", name, payload.Stage())
		}
		if err := payload.Validate(); err != nil {
			t.Fatalf("%s: invalid payload: %v", name, err)
		}
		upstream[name] = payload
	}

	video := upstream[stage.Video].(stage.VideoPayload)
	if filepath.Dir(video.File) != filepath.Join(videosDir, agent.DraftsDir) {
		t.Fatalf("unexpected draft location %s", video.File)
	}
	if info, err := os.Stat(video.File); err != nil || info.Size() == 0 {
		t.Fatalf("expected draft video on disk: %v", err)
	}
	upload := upstream[stage.Upload].(stage.UploadPayload)
	if upload.VideoFile != video.File {
		t.Fatalf("upload references %s, want %s", upload.VideoFile, video.File)
	}
	if upload.Title != "Ocean Tides Explained" {
		t.Fatalf("unexpected upload title %q", upload.Title)
	}
}

func TestTemplateAgentVideoNeedsScript(t *testing.T) {
	a := &agent.TemplateAgent{VideosDir: t.TempDir()}
	if _, err := a.Generate(context.Background(), agent.Request{Topic: "x", Stage: stage.Video}); err == nil {
		t.Fatal("expected error without approved script")
	}
}

func TestRegistryFromConfigPrefersCommands(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAgentScript("script", `echo '{}'`))
	reg := agent.NewRegistryFromConfig(cfg, nil)

	scriptAgent, ok := reg.Get(stage.Script)
	if !ok {
		t.Fatal("expected script agent")
	}
	if _, ok := scriptAgent.(*agent.CommandAgent); !ok {
		t.Fatalf("expected command agent for script, got %T", scriptAgent)
	}
	researchAgent, _ := reg.Get(stage.Research)
	if _, ok := researchAgent.(*agent.TemplateAgent); !ok {
		t.Fatalf("expected template agent for research, got %T", researchAgent)
	}

	health := reg.Health(context.Background())
	if len(health) != len(stage.Order()) {
		t.Fatalf("expected %d health entries, got %d", len(stage.Order()), len(health))
	}
	for i, h := range health {
		if h.Name != string(stage.Order()[i]) || !h.Ready {
			t.Fatalf("unexpected health %+v", h)
		}
	}
}
