package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ckough/pagesmith/internal/service"
	"github.com/ckough/pagesmith/internal/service/publisher"
	"github.com/ckough/pagesmith/internal/service/webjob"
)

type createJobRequest struct {
	RendererOutput string `json:"rendererOutput" binding:"required"`
	Brand          string `json:"brand" binding:"required"`
	SiteKey        string `json:"siteKey" binding:"required"`
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.JobService.CreateJob(req.RendererOutput, req.Brand, req.SiteKey)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": job})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.JobService.GetJob(c.Param("id"))
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

type patchSlugsRequest struct {
	Overrides map[string]string `json:"overrides" binding:"required"`
}

func (s *Server) handlePatchSlugs(c *gin.Context) {
	var req patchSlugsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.JobService.PatchSlugs(c.Param("id"), req.Overrides)
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleApproveAll(c *gin.Context) {
	job, err := s.JobService.ApproveAll(c.Param("id"))
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

type pageApprovalRequest struct {
	Status webjob.ApprovalStatus `json:"status" binding:"required"`
}

func (s *Server) handleSetPageApproval(c *gin.Context) {
	var req pageApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.JobService.SetPageApproval(c.Param("id"), c.Param("key"), req.Status)
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleValidateSlugs(c *gin.Context) {
	job, results, err := s.JobService.ValidateSlugs(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job, "lookups": results})
}

type publishRequest struct {
	DryRun       bool                     `json:"dryRun"`
	RetryFailed  bool                     `json:"retryFailed"`
	UpdateTitles *bool                    `json:"updateTitles"`
	Media        *publisher.MediaManifest `json:"media"`
}

func (s *Server) handlePublish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updateTitles := s.Config.Publisher.UpdateTitles
	if req.UpdateTitles != nil {
		updateTitles = *req.UpdateTitles
	}

	result, err := s.JobService.Publish(c.Request.Context(), c.Param("id"), req.Media, publisher.PublishOptions{
		DryRun:       req.DryRun,
		RetryFailed:  req.RetryFailed,
		UpdateTitles: updateTitles,
	})
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

type requestChangesRequest struct {
	Comment string `json:"comment" binding:"required"`
	PageKey string `json:"pageKey"`
}

func (s *Server) handleRequestChanges(c *gin.Context) {
	var req requestChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feedback, err := s.JobService.RequestChanges(c.Param("id"), req.Comment, req.PageKey)
	if err != nil {
		s.renderJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": feedback})
}

func (s *Server) renderJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRevisionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("Job operation failed", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	}
}
