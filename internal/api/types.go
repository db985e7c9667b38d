package api

import (
	"reelgate/internal/stage"
	"reelgate/internal/storage"
	"reelgate/internal/workflow"
)

// StartRequest starts a workflow.
type StartRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// StartResponse echoes the created workflow identity.
type StartResponse struct {
	WorkflowID string `json:"workflow_id"`
	Topic      string `json:"topic"`
}

// WorkflowListResponse wraps List results.
type WorkflowListResponse struct {
	Workflows []workflow.Workflow `json:"workflows"`
}

// FinalizeRequest carries the upload result. The body may be empty.
type FinalizeRequest struct {
	PublishID string `json:"publish_id"`
}

// PublishRequest marks a stored record as published.
type PublishRequest struct {
	PublishID string `json:"publish_id" binding:"required"`
}

// VideoListResponse wraps stored records.
type VideoListResponse struct {
	Videos []storage.VideoRecord `json:"videos"`
}

// StatusResponse describes the running service.
type StatusResponse struct {
	Backend    string         `json:"backend"`
	RunStore   string         `json:"run_store,omitempty"`
	Generators []stage.Health `json:"generators"`
	Workflows  map[string]int `json:"workflows"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
