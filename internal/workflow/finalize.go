package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/services"
	"reelgate/internal/stage"
	"reelgate/internal/storage"
)

// UploadResult is what the caller reports when finalizing the upload stage.
type UploadResult struct {
	// PublishID is the external publish id, when the video was already
	// published elsewhere.
	PublishID string `json:"publish_id,omitempty"`
}

// FinalizeUpload persists the approved video and its record, then approves
// the upload stage. On a storage failure the upload stage keeps its prior
// state and the call can be retried; retries reuse the reserved record id.
func (e *Engine) FinalizeUpload(ctx context.Context, id string, result UploadResult) (storage.VideoRecord, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	wf, err := e.repo.Get(ctx, id)
	if err != nil {
		return storage.VideoRecord{}, err
	}
	ctx = services.WithWorkflowID(ctx, id)
	ctx = services.WithStage(ctx, string(stage.Upload))
	logger := e.loggerFor(ctx, id, stage.Upload)

	for _, earlier := range stage.Before(stage.Upload) {
		step, err := stepFor(&wf, earlier)
		if err != nil {
			return storage.VideoRecord{}, err
		}
		if step.Status != StepApproved {
			return storage.VideoRecord{}, services.Wrap(services.ErrInvalidTransition, "workflow", "finalize upload",
				fmt.Sprintf("%s is %s", earlier, step.Status), nil)
		}
	}
	uploadStep, err := stepFor(&wf, stage.Upload)
	if err != nil {
		return storage.VideoRecord{}, err
	}
	if uploadStep.Status == StepApproved {
		return storage.VideoRecord{}, invalidTransition(stage.Upload, "finalize upload", uploadStep.Status)
	}
	if e.backend == nil {
		return storage.VideoRecord{}, services.Wrap(services.ErrConfiguration, "workflow", "finalize upload", "no storage backend configured", nil)
	}

	request := e.uploadRequest(&wf, uploadStep)
	if err := request.Validate(); err != nil {
		return storage.VideoRecord{}, err
	}
	video, _ := approvedVideo(&wf)

	if wf.RecordID == "" {
		reservedAt := e.now()
		wf.RecordID = storage.NewRecordID(reservedAt)
		wf.RecordCreatedAt = timePtr(reservedAt)
		wf.UpdatedAt = reservedAt
		if err := e.repo.Save(ctx, wf); err != nil {
			return storage.VideoRecord{}, e.storeError("reserve record id", err)
		}
	}
	createdAt := e.now()
	if wf.RecordCreatedAt != nil {
		createdAt = *wf.RecordCreatedAt
	}

	data, err := os.ReadFile(e.resolveVideoPath(request.VideoFile))
	if err != nil {
		return storage.VideoRecord{}, services.Wrap(services.ErrStorage, "workflow", "finalize upload",
			fmt.Sprintf("read video %s", request.VideoFile), err)
	}

	key := storage.ObjectKey(wf.Topic, wf.RecordID)
	record, err := storage.Persist(ctx, e.backend, storage.VideoRecord{
		ID:              wf.RecordID,
		Filename:        key,
		StorageKey:      key,
		Topic:           wf.Topic,
		DurationSeconds: video.DurationSeconds,
		CreatedAt:       createdAt,
		Status:          storage.StatusCompleted,
		Playable:        true,
		PublishID:       strings.TrimSpace(result.PublishID),
	}, data)
	if err != nil {
		logger.Error("upload finalization failed",
			logging.String(logging.FieldRecordID, wf.RecordID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_failed"),
			logging.String(logging.FieldErrorHint, "retry the upload once the storage backend is reachable"),
		)
		return storage.VideoRecord{}, err
	}

	now := e.now()
	uploadStep.Status = StepApproved
	uploadStep.Payload = request
	uploadStep.Error = ""
	if uploadStep.GeneratedAt == nil {
		uploadStep.GeneratedAt = timePtr(now)
	}
	uploadStep.ApprovedAt = timePtr(now)
	wf.UpdatedAt = now
	if err := e.repo.Save(ctx, wf); err != nil {
		return storage.VideoRecord{}, e.storeError("save workflow", err)
	}

	logger.Info("upload finalized",
		logging.String(logging.FieldRecordID, record.ID),
		logging.String(logging.FieldBackend, e.backend.Name()),
		logging.Int64("bytes", record.FileSize),
		logging.String(logging.FieldEventType, "upload_finalized"),
	)
	e.publish(ctx, notifications.EventVideoStored, notifications.Payload{
		"title":    request.Title,
		"recordID": record.ID,
		"backend":  e.backend.Name(),
	})
	return record, nil
}

// uploadRequest returns the reviewed upload payload, or assembles one from
// the approved metadata and video when the upload stage was never generated.
func (e *Engine) uploadRequest(wf *Workflow, uploadStep *Step) stage.UploadPayload {
	if uploadStep.Status == StepGenerated {
		if payload, ok := uploadStep.Payload.(stage.UploadPayload); ok {
			return payload
		}
	}
	out := stage.UploadPayload{Privacy: "private"}
	if step, ok := wf.Step(stage.Metadata); ok {
		if metadata, ok := step.Payload.(stage.MetadataPayload); ok {
			out.Title = metadata.Title
			out.Description = metadata.Description
			out.Tags = append([]string(nil), metadata.Tags...)
		}
	}
	if video, ok := approvedVideo(wf); ok {
		out.VideoFile = video.File
	}
	return out
}

func approvedVideo(wf *Workflow) (stage.VideoPayload, bool) {
	step, ok := wf.Step(stage.Video)
	if !ok || step.Status != StepApproved {
		return stage.VideoPayload{}, false
	}
	video, ok := step.Payload.(stage.VideoPayload)
	return video, ok
}

func (e *Engine) resolveVideoPath(path string) string {
	if filepath.IsAbs(path) || e.videosDir == "" {
		return path
	}
	return filepath.Join(e.videosDir, path)
}
