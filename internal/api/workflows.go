package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"reelgate/internal/stage"
	"reelgate/internal/workflow"
)

func (s *Server) startWorkflow(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "topic is required")
		return
	}
	wf, err := s.engine.Start(c.Request.Context(), req.Topic)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, StartResponse{WorkflowID: wf.ID, Topic: wf.Topic})
}

func (s *Server) listWorkflows(c *gin.Context) {
	workflows, err := s.engine.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if workflows == nil {
		workflows = []workflow.Workflow{}
	}
	c.JSON(http.StatusOK, WorkflowListResponse{Workflows: workflows})
}

func (s *Server) getWorkflow(c *gin.Context) {
	wf, err := s.engine.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (s *Server) getStage(c *gin.Context) {
	name, ok := stageParam(c)
	if !ok {
		return
	}
	wf, err := s.engine.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	step, found := wf.Step(name)
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "stage not found", Kind: "not_found"})
		return
	}
	c.JSON(http.StatusOK, step)
}

func (s *Server) generateStage(c *gin.Context) {
	name, ok := stageParam(c)
	if !ok {
		return
	}
	step, err := s.engine.GenerateStage(c.Request.Context(), c.Param("id"), name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (s *Server) approveStage(c *gin.Context) {
	name, ok := stageParam(c)
	if !ok {
		return
	}
	tr, err := s.engine.ApproveStage(c.Request.Context(), c.Param("id"), name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) rejectStage(c *gin.Context) {
	name, ok := stageParam(c)
	if !ok {
		return
	}
	tr, err := s.engine.RejectStage(c.Request.Context(), c.Param("id"), name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) finalizeUpload(c *gin.Context) {
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid upload result: "+err.Error())
		return
	}
	rec, err := s.engine.FinalizeUpload(c.Request.Context(), c.Param("id"), workflow.UploadResult{PublishID: req.PublishID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func stageParam(c *gin.Context) (stage.Name, bool) {
	name, err := stage.Parse(c.Param("stage"))
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return name, true
}
