package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reelgate/internal/agent"
	"reelgate/internal/stage"
)

// ScriptedExecutor is a fake step executor. Every call produces a fresh,
// numbered payload unless the stage was told to fail.
type ScriptedExecutor struct {
	// Hook runs before each generation; tests use it to block or observe.
	Hook func(ctx context.Context, req agent.Request)

	videosDir string
	mu        sync.Mutex
	calls     map[stage.Name]int
	failures  map[stage.Name]error
	requests  []agent.Request
}

// NewScriptedExecutor writes generated videos under videosDir.
func NewScriptedExecutor(videosDir string) *ScriptedExecutor {
	return &ScriptedExecutor{
		videosDir: videosDir,
		calls:     map[stage.Name]int{},
		failures:  map[stage.Name]error{},
	}
}

// FailStage makes generations of name fail with err. A nil err clears it.
func (s *ScriptedExecutor) FailStage(name stage.Name, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, name)
		return
	}
	s.failures[name] = err
}

// Calls returns how many times name was generated.
func (s *ScriptedExecutor) Calls(name stage.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// Requests returns every request received, in order.
func (s *ScriptedExecutor) Requests() []agent.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Request(nil), s.requests...)
}

func (s *ScriptedExecutor) Execute(ctx context.Context, req agent.Request) (stage.Payload, error) {
	s.mu.Lock()
	s.calls[req.Stage]++
	n := s.calls[req.Stage]
	failure := s.failures[req.Stage]
	s.requests = append(s.requests, req)
	hook := s.Hook
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, req)
	}
	if failure != nil {
		return nil, &agent.Failure{Stage: req.Stage, Attempts: 1, Err: failure}
	}

	switch req.Stage {
	case stage.Research:
		return stage.ResearchPayload{
			Summary:   fmt.Sprintf("research draft %d for %s", n, req.Topic),
			KeyPoints: []string{"first point", "second point"},
		}, nil
	case stage.Script:
		return stage.ScriptPayload{
			Intro:    fmt.Sprintf("script draft %d", n),
			Segments: []stage.ScriptSegment{{Heading: "Part one", Narration: "Narration for part one."}},
			Outro:    "Goodbye.",
		}, nil
	case stage.Metadata:
		return stage.MetadataPayload{
			Title:       fmt.Sprintf("%s (draft %d)", req.Topic, n),
			Description: "Generated description.",
			Tags:        []string{"test"},
		}, nil
	case stage.Video:
		path := filepath.Join(s.videosDir, "drafts", fmt.Sprintf("%s-%d.mp4", req.WorkflowID, n))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &agent.Failure{Stage: req.Stage, Attempts: 1, Err: err}
		}
		if err := os.WriteFile(path, []byte(fmt.Sprintf("video-%s-%d", req.WorkflowID, n)), 0o644); err != nil {
			return nil, &agent.Failure{Stage: req.Stage, Attempts: 1, Err: err}
		}
		return stage.VideoPayload{File: path, DurationSeconds: 12, Resolution: "1280x720"}, nil
	case stage.Upload:
		video, ok := agent.Upstream[stage.VideoPayload](req, stage.Video)
		if !ok {
			return nil, &agent.Failure{Stage: req.Stage, Attempts: 1, Err: fmt.Errorf("video not approved")}
		}
		metadata, _ := agent.Upstream[stage.MetadataPayload](req, stage.Metadata)
		title := metadata.Title
		if title == "" {
			title = req.Topic
		}
		return stage.UploadPayload{Title: title, Description: metadata.Description, VideoFile: video.File, Privacy: "unlisted"}, nil
	default:
		return nil, &agent.Failure{Stage: req.Stage, Attempts: 1, Err: fmt.Errorf("unknown stage %q", req.Stage)}
	}
}
