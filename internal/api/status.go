package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reelgate/internal/stage"
)

func (s *Server) status(c *gin.Context) {
	ctx := c.Request.Context()
	resp := StatusResponse{
		RunStore:   s.runStore,
		Generators: []stage.Health{},
		Workflows:  map[string]int{},
	}
	if backend := s.engine.Backend(); backend != nil {
		resp.Backend = backend.Name()
	}
	if s.health != nil {
		resp.Generators = s.health.Health(ctx)
	}
	workflows, err := s.engine.List(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	for _, wf := range workflows {
		resp.Workflows[string(wf.Status())]++
	}
	c.JSON(http.StatusOK, resp)
}
