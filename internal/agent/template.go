package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelgate/internal/fileutil"
	"reelgate/internal/stage"
	"reelgate/internal/textutil"
)

// DraftsDir is the videos subdirectory holding rendered drafts.
const DraftsDir = "drafts"

const secondsPerSegment = 10

// placeholderMP4 is a minimal ftyp box followed by an empty mdat.
var placeholderMP4 = append([]byte("\x00\x00\x00\x20ftypisom\x00\x00\x00\x00isomiso2avc1mp41\x00\x00\x00\x00mdat"), make([]byte, 100)...)

// TemplateAgent produces deterministic content for every stage. The video
// stage writes a placeholder MP4 under VideosDir/drafts.
type TemplateAgent struct {
	VideosDir string
}

func (a *TemplateAgent) Generate(ctx context.Context, req Request) (stage.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, errors.New("topic is empty")
	}
	switch req.Stage {
	case stage.Research:
		return researchFor(topic), nil
	case stage.Script:
		research, ok := Upstream[stage.ResearchPayload](req, stage.Research)
		if !ok {
			research = researchFor(topic)
		}
		return scriptFor(topic, research), nil
	case stage.Metadata:
		return metadataFor(topic), nil
	case stage.Video:
		script, ok := Upstream[stage.ScriptPayload](req, stage.Script)
		if !ok {
			return nil, errors.New("approved script is required")
		}
		return a.renderVideo(req.WorkflowID, script)
	case stage.Upload:
		return uploadFor(req)
	default:
		return nil, fmt.Errorf("unsupported stage %q", req.Stage)
	}
}

// Health reports whether the drafts directory is writable.
func (a *TemplateAgent) Health(context.Context) stage.Health {
	dir := filepath.Join(a.VideosDir, DraftsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stage.Unhealthy("template", fmt.Sprintf("drafts dir: %v", err))
	}
	return stage.Health{Name: "template", Ready: true, Detail: "built-in template"}
}

func researchFor(topic string) stage.ResearchPayload {
	title := textutil.Title(topic)
	return stage.ResearchPayload{
		Summary: fmt.Sprintf("Background notes on %s for a short explainer video.", title),
		KeyPoints: []string{
			fmt.Sprintf("What %s is", title),
			fmt.Sprintf("Why %s matters", title),
			fmt.Sprintf("Where to learn more about %s", title),
		},
	}
}

func scriptFor(topic string, research stage.ResearchPayload) stage.ScriptPayload {
	title := textutil.Title(topic)
	segments := make([]stage.ScriptSegment, 0, len(research.KeyPoints))
	for _, point := range research.KeyPoints {
		point = strings.TrimSpace(point)
		if point == "" {
			continue
		}
		segments = append(segments, stage.ScriptSegment{
			Heading:   point,
			Narration: fmt.Sprintf("%s. Here is a short look at this part of the story.", point),
		})
	}
	if len(segments) == 0 {
		segments = append(segments, stage.ScriptSegment{
			Heading:   title,
			Narration: research.Summary,
		})
	}
	return stage.ScriptPayload{
		Intro:    fmt.Sprintf("Today we explore %s.", title),
		Segments: segments,
		Outro:    fmt.Sprintf("Thanks for watching this overview of %s.", title),
	}
}

func metadataFor(topic string) stage.MetadataPayload {
	title := textutil.Title(topic)
	slug := textutil.Slug(topic, 60)
	var tags []string
	for _, word := range strings.Split(slug, "_") {
		if word != "" {
			tags = append(tags, word)
		}
	}
	return stage.MetadataPayload{
		Title:       fmt.Sprintf("%s Explained", title),
		Description: fmt.Sprintf("A short explainer about %s.", title),
		Tags:        tags,
		Keywords:    []string{strings.ToLower(strings.TrimSpace(topic))},
	}
}

func (a *TemplateAgent) renderVideo(workflowID string, script stage.ScriptPayload) (stage.Payload, error) {
	if strings.TrimSpace(a.VideosDir) == "" {
		return nil, errors.New("videos directory not configured")
	}
	name := textutil.Slug(workflowID, 64)
	path := filepath.Join(a.VideosDir, DraftsDir, name+".mp4")
	if err := fileutil.WriteFileAtomic(path, placeholderMP4, 0o644); err != nil {
		return nil, fmt.Errorf("write draft video: %w", err)
	}
	return stage.VideoPayload{
		File:            path,
		DurationSeconds: float64(secondsPerSegment * len(script.Segments)),
		Resolution:      "1280x720",
	}, nil
}

func uploadFor(req Request) (stage.Payload, error) {
	video, ok := Upstream[stage.VideoPayload](req, stage.Video)
	if !ok {
		return nil, errors.New("approved video is required")
	}
	metadata, ok := Upstream[stage.MetadataPayload](req, stage.Metadata)
	if !ok {
		metadata = metadataFor(req.Topic)
	}
	return stage.UploadPayload{
		Title:       metadata.Title,
		Description: metadata.Description,
		Tags:        append([]string(nil), metadata.Tags...),
		VideoFile:   video.File,
		Privacy:     "private",
	}, nil
}
