package stage

import (
	"fmt"
	"strings"

	"reelgate/internal/services"
)

// Payload is the output of one stage generator. Implementations are the
// closed set of *Payload structs in this package.
type Payload interface {
	Stage() Name
	Validate() error
}

// ResearchPayload holds background notes gathered for the topic.
type ResearchPayload struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Sources   []string `json:"sources,omitempty"`
}

// ScriptSegment is one narrated section of the script.
type ScriptSegment struct {
	Heading   string `json:"heading"`
	Narration string `json:"narration"`
}

// ScriptPayload holds the narration script.
type ScriptPayload struct {
	Intro    string          `json:"intro"`
	Segments []ScriptSegment `json:"segments"`
	Outro    string          `json:"outro"`
}

// MetadataPayload holds publish metadata.
type MetadataPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// VideoPayload references the rendered video file on local disk.
type VideoPayload struct {
	File            string  `json:"file"`
	DurationSeconds float64 `json:"duration_seconds"`
	Resolution      string  `json:"resolution,omitempty"`
}

// UploadPayload is the assembled publish request awaiting final review.
type UploadPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	VideoFile   string   `json:"video_file"`
	Privacy     string   `json:"privacy"`
}

func (ResearchPayload) Stage() Name { return Research }
func (ScriptPayload) Stage() Name   { return Script }
func (MetadataPayload) Stage() Name { return Metadata }
func (VideoPayload) Stage() Name    { return Video }
func (UploadPayload) Stage() Name   { return Upload }

func (p ResearchPayload) Validate() error {
	if strings.TrimSpace(p.Summary) == "" {
		return invalid(Research, "summary is empty")
	}
	return nil
}

func (p ScriptPayload) Validate() error {
	if len(p.Segments) == 0 {
		return invalid(Script, "script has no segments")
	}
	for i, seg := range p.Segments {
		if strings.TrimSpace(seg.Narration) == "" {
			return invalid(Script, fmt.Sprintf("segment %d has no narration", i+1))
		}
	}
	return nil
}

func (p MetadataPayload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return invalid(Metadata, "title is empty")
	}
	return nil
}

func (p VideoPayload) Validate() error {
	if strings.TrimSpace(p.File) == "" {
		return invalid(Video, "file is empty")
	}
	if p.DurationSeconds < 0 {
		return invalid(Video, "duration is negative")
	}
	return nil
}

func (p UploadPayload) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return invalid(Upload, "title is empty")
	}
	if strings.TrimSpace(p.VideoFile) == "" {
		return invalid(Upload, "video file is empty")
	}
	switch p.Privacy {
	case "", "private", "unlisted", "public":
		return nil
	default:
		return invalid(Upload, fmt.Sprintf("unsupported privacy %q", p.Privacy))
	}
}

func invalid(name Name, message string) error {
	return services.Wrap(services.ErrValidation, "stage", string(name), message, nil)
}
