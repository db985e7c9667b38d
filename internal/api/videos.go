package api

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"reelgate/internal/services"
	"reelgate/internal/storage"
)

func (s *Server) backend(c *gin.Context) (storage.Backend, bool) {
	backend := s.engine.Backend()
	if backend == nil {
		s.writeError(c, services.Wrap(services.ErrConfiguration, "api", "videos", "no storage backend configured", nil))
		return nil, false
	}
	return backend, true
}

func (s *Server) listVideos(c *gin.Context) {
	backend, ok := s.backend(c)
	if !ok {
		return
	}
	records, err := backend.ListRecords(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if records == nil {
		records = []storage.VideoRecord{}
	}
	c.JSON(http.StatusOK, VideoListResponse{Videos: records})
}

func (s *Server) getVideo(c *gin.Context) {
	backend, ok := s.backend(c)
	if !ok {
		return
	}
	rec, err := backend.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// streamVideo redirects to the object when the record carries an absolute
// URL and streams it from the backend otherwise.
func (s *Server) streamVideo(c *gin.Context) {
	backend, ok := s.backend(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rec, err := backend.GetRecord(ctx, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if strings.HasPrefix(rec.URL, "https://") || strings.HasPrefix(rec.URL, "http://") {
		c.Redirect(http.StatusFound, rec.URL)
		return
	}
	body, err := backend.OpenObject(ctx, rec.StorageKey)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer body.Close()

	size := rec.FileSize
	if size <= 0 {
		size = -1
	}
	name := rec.Filename
	if name == "" {
		name = path.Base(rec.StorageKey)
	}
	c.DataFromReader(http.StatusOK, size, "video/mp4", body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", name),
	})
}

func (s *Server) publishVideo(c *gin.Context) {
	backend, ok := s.backend(c)
	if !ok {
		return
	}
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "publish_id is required")
		return
	}
	rec, err := storage.MarkPublished(c.Request.Context(), backend, c.Param("id"), req.PublishID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
