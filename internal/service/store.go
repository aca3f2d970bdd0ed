package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ckough/pagesmith/internal/models"
	"github.com/ckough/pagesmith/internal/service/webjob"
)

// ErrRevisionConflict is returned when a save loses the optimistic-lock race,
// which happens when two callers mutate the same job concurrently.
var ErrRevisionConflict = errors.New("job was modified concurrently")

var ErrJobNotFound = errors.New("job not found")

// JobStore persists the job aggregate as an opaque JSON record. The aggregate
// is serialized wholesale and validated on load.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

// Load fetches and decodes a job. The returned revision must be passed back to
// Save unchanged.
func (s *JobStore) Load(id string) (*webjob.Job, int, error) {
	var record models.JobRecord
	if err := s.db.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrJobNotFound
		}
		return nil, 0, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	job, err := webjob.Load([]byte(record.Payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return job, record.Revision, nil
}

// Create inserts a new job record at revision 0.
func (s *JobStore) Create(job *webjob.Job) error {
	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	record := models.JobRecord{
		ID:      job.ID,
		SiteKey: job.SiteKey,
		Status:  string(job.Status),
		Payload: string(payload),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}
	return nil
}

// Save rewrites the job payload, guarded by the revision read at load time.
func (s *JobStore) Save(job *webjob.Job, revision int) error {
	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	result := s.db.Model(&models.JobRecord{}).
		Where("id = ? AND revision = ?", job.ID, revision).
		Updates(map[string]any{
			"status":   string(job.Status),
			"payload":  string(payload),
			"revision": revision + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRevisionConflict
	}
	return nil
}
