package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ckough/pagesmith/internal/config"
	"github.com/ckough/pagesmith/internal/service/publisher"
	"github.com/ckough/pagesmith/internal/service/webjob"
	"github.com/ckough/pagesmith/internal/service/wordpress"
)

// JobService owns the job lifecycle: creation from renderer output, the review
// loop (slug validation, approval, slug patches, feedback), and publishing.
// Each operation loads the aggregate, mutates it in memory, and saves it back
// under an optimistic revision check.
type JobService struct {
	config *config.Config
	store  *JobStore
	audit  *AuditWriter
	logger *zap.Logger

	// newCMS is swappable so tests can publish against a fake CMS.
	newCMS func(site config.SiteConfig) publisher.CMSClient
}

func NewJobService(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *JobService {
	timeout, err := time.ParseDuration(cfg.Publisher.RequestTimeout)
	if err != nil {
		timeout = 60 * time.Second
	}

	return &JobService{
		config: cfg,
		store:  NewJobStore(db),
		audit:  NewAuditWriter(db, logger),
		logger: logger,
		newCMS: func(site config.SiteConfig) publisher.CMSClient {
			return wordpress.NewClient(wordpress.Config{
				BaseURL:     site.BaseURL,
				Username:    site.Username,
				AppPassword: site.AppPassword,
				Timeout:     timeout,
			}, logger)
		},
	}
}

// CreateJob builds a job from raw renderer output and persists it.
func (s *JobService) CreateJob(rawOutput, brand, siteKey string) (*webjob.Job, error) {
	job, err := webjob.NewJob(rawOutput, brand, siteKey)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(job); err != nil {
		return nil, err
	}

	s.logger.Info("Job created",
		zap.String("job_id", job.ID),
		zap.String("site_key", siteKey),
		zap.Int("pages", len(job.Pages)))
	return job, nil
}

func (s *JobService) GetJob(id string) (*webjob.Job, error) {
	job, _, err := s.store.Load(id)
	return job, err
}

// PatchSlugs applies slug overrides; a duplicate-producing patch is rejected
// without touching the stored job.
func (s *JobService) PatchSlugs(id string, overrides map[string]string) (*webjob.Job, error) {
	job, rev, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}
	if err := job.PatchSlugs(overrides); err != nil {
		return nil, err
	}
	if err := s.store.Save(job, rev); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) ApproveAll(id string) (*webjob.Job, error) {
	job, rev, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}
	job.ApproveAll()
	if err := s.store.Save(job, rev); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) SetPageApproval(id, sourceKey string, status webjob.ApprovalStatus) (*webjob.Job, error) {
	job, rev, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}
	if err := job.SetApproval(sourceKey, status); err != nil {
		return nil, err
	}
	if err := s.store.Save(job, rev); err != nil {
		return nil, err
	}
	return job, nil
}

// RequestChanges records a feedback payload for the revision step and returns
// it; job and page statuses are untouched.
func (s *JobService) RequestChanges(id, comment, pageKey string) (*webjob.Feedback, error) {
	job, rev, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}
	feedback, err := job.RequestChanges(comment, pageKey)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(job, rev); err != nil {
		return nil, err
	}
	return feedback, nil
}

// ValidateSlugs runs the batch slug lookup against the job's site and persists
// the per-page results.
func (s *JobService) ValidateSlugs(ctx context.Context, id string) (*webjob.Job, []publisher.SlugLookup, error) {
	job, rev, err := s.store.Load(id)
	if err != nil {
		return nil, nil, err
	}

	site, err := s.config.Site(job.SiteKey)
	if err != nil {
		return nil, nil, err
	}

	resolver := publisher.NewSlugResolver(s.newCMS(site), s.logger)
	results, err := resolver.ResolveAll(ctx, job)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.Save(job, rev); err != nil {
		return nil, nil, err
	}
	return job, results, nil
}

// Publish runs one publish batch. Configuration errors reject the call before
// the batch starts; per-page failures are carried in the result. Dry runs
// persist nothing and skip the audit trail.
func (s *JobService) Publish(ctx context.Context, id string, manifest *publisher.MediaManifest, opts publisher.PublishOptions) (*publisher.BatchResult, error) {
	job, rev, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}

	site, err := s.config.Site(job.SiteKey)
	if err != nil {
		return nil, fmt.Errorf("publish rejected: %w", err)
	}

	batch := publisher.NewBatchPublisher(s.newCMS(site), s.logger)
	result, err := batch.Publish(ctx, job, manifest, opts)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return result, nil
	}

	if err := s.store.Save(job, rev); err != nil {
		return nil, err
	}
	s.audit.Record(job, result)
	return result, nil
}
