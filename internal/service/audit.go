package service

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ckough/pagesmith/internal/models"
	"github.com/ckough/pagesmith/internal/service/publisher"
	"github.com/ckough/pagesmith/internal/service/webjob"
)

// AuditWriter appends one durable record per publish batch. A failed audit
// write must never fail the publish itself, so errors are only logged.
type AuditWriter struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditWriter(db *gorm.DB, logger *zap.Logger) *AuditWriter {
	return &AuditWriter{db: db, logger: logger}
}

func (w *AuditWriter) Record(job *webjob.Job, batch *publisher.BatchResult) {
	results, err := json.Marshal(batch.Pages)
	if err != nil {
		w.logger.Error("Failed to encode audit results", zap.String("job_id", job.ID), zap.Error(err))
		results = []byte("[]")
	}

	audit := models.PublishAudit{
		JobID:       job.ID,
		SiteKey:     job.SiteKey,
		JobStatus:   string(batch.JobStatus),
		OKCount:     batch.OKCount,
		FailedCount: batch.FailedCount,
		Results:     string(results),
	}

	if err := w.db.Create(&audit).Error; err != nil {
		w.logger.Error("Failed to write publish audit record",
			zap.String("job_id", job.ID),
			zap.String("site_key", job.SiteKey),
			zap.Error(err))
		return
	}

	w.logger.Info("Publish batch recorded",
		zap.String("job_id", job.ID),
		zap.String("site_key", job.SiteKey),
		zap.String("job_status", string(batch.JobStatus)),
		zap.Int("ok", batch.OKCount),
		zap.Int("failed", batch.FailedCount))
}
