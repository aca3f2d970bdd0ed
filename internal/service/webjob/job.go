package webjob

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is bumped whenever the serialized aggregate shape changes.
const SchemaVersion = 1

type JobStatus string

const (
	StatusDraft      JobStatus = "DRAFT"
	StatusInReview   JobStatus = "IN_REVIEW"
	StatusApproved   JobStatus = "APPROVED"
	StatusPublishing JobStatus = "PUBLISHING"
	StatusPublished  JobStatus = "PUBLISHED"
	StatusPartial    JobStatus = "PARTIAL"
	StatusFailed     JobStatus = "FAILED"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// BodyFormat is decided once at ingestion; the assembler still sniffs for
// markup so a mislabeled body renders safely.
type BodyFormat string

const (
	FormatHTML     BodyFormat = "html"
	FormatMarkdown BodyFormat = "markdown"
)

const (
	PublishOK     = "ok"
	PublishFailed = "failed"
)

// PublishOutcome records the last publish attempt for one page.
type PublishOutcome struct {
	OK          bool      `json:"ok"`
	Link        string    `json:"link,omitempty"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Page is one content unit within a job.
type Page struct {
	SourceKey       string          `json:"source_key"`
	Title           string          `json:"title"`
	MetaTitle       string          `json:"meta_title,omitempty"`
	MetaDescription string          `json:"meta_description,omitempty"`
	TargetSlug      string          `json:"target_slug"`
	Format          BodyFormat      `json:"format"`
	Body            string          `json:"body"`
	Approval        ApprovalStatus  `json:"approval_status"`
	CMSPageID       *int            `json:"cms_page_id,omitempty"`
	CMSPageExists   *bool           `json:"cms_page_exists,omitempty"`
	PublishStatus   string          `json:"publish_status,omitempty"`
	LastResult      *PublishOutcome `json:"publish_result,omitempty"`
}

// FeedbackPage snapshots one page's current body for a revision round.
type FeedbackPage struct {
	SourceKey string `json:"source_key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Feedback is the structured "request changes" payload handed back to the
// upstream content-revision step. Recording it never mutates page or job status.
type Feedback struct {
	JobID     string         `json:"job_id"`
	Brand     string         `json:"brand"`
	Comment   string         `json:"comment"`
	Pages     []FeedbackPage `json:"pages"`
	CreatedAt time.Time      `json:"created_at"`
}

// Job is the aggregate root for one publish campaign.
type Job struct {
	ID                 string    `json:"id"`
	Schema             int       `json:"schema"`
	SiteKey            string    `json:"site_key"`
	Brand              string    `json:"brand"`
	Status             JobStatus `json:"status"`
	RequireAllApproved bool      `json:"require_all_approved"`
	Pages              []Page    `json:"pages"`
	Feedback           *Feedback `json:"feedback,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewJob builds a job from raw renderer output. Zero parsed pages is a hard
// input-format error. The initial slugs default to the source keys, so a
// renderer that emits colliding keys is rejected here too.
func NewJob(rawOutput, brand, siteKey string) (*Job, error) {
	pages := Normalize(rawOutput)
	if len(pages) == 0 {
		return nil, fmt.Errorf("renderer output could not be parsed into pages")
	}

	job := &Job{
		ID:        uuid.NewString(),
		Schema:    SchemaVersion,
		SiteKey:   siteKey,
		Brand:     brand,
		Status:    StatusDraft,
		CreatedAt: time.Now().UTC(),
	}

	for _, rp := range pages {
		job.Pages = append(job.Pages, Page{
			SourceKey:       rp.SourceKey,
			Title:           rp.Title,
			MetaTitle:       rp.MetaTitle,
			MetaDescription: rp.MetaDescription,
			TargetSlug:      rp.SourceKey,
			Format:          rp.Format,
			Body:            rp.Body,
			Approval:        ApprovalPending,
		})
	}

	if err := job.checkSlugUniqueness(job.Pages); err != nil {
		return nil, err
	}

	return job, nil
}

// Load deserializes a stored aggregate and validates it.
func Load(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	if job.Schema != SchemaVersion {
		return nil, fmt.Errorf("unsupported job schema version %d", job.Schema)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("job payload has no id")
	}
	if err := job.checkSlugUniqueness(job.Pages); err != nil {
		return nil, fmt.Errorf("stored job is corrupt: %w", err)
	}
	return &job, nil
}

// Encode serializes the aggregate wholesale for the job store.
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// Page returns the page with the given source key.
func (j *Job) Page(sourceKey string) (*Page, bool) {
	for i := range j.Pages {
		if j.Pages[i].SourceKey == sourceKey {
			return &j.Pages[i], true
		}
	}
	return nil, false
}

// PatchSlugs applies slug overrides keyed by source key. The whole patch is
// rejected, leaving the job unchanged, if any override targets an unknown page
// or would leave two pages sharing a slug.
func (j *Job) PatchSlugs(overrides map[string]string) error {
	var unknown []string
	for key := range overrides {
		if _, ok := j.Page(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("slug patch references unknown pages: %s", strings.Join(unknown, ", "))
	}

	// Validate against a copy so a rejected patch leaves the job untouched.
	patched := make([]Page, len(j.Pages))
	copy(patched, j.Pages)
	for i := range patched {
		if slug, ok := overrides[patched[i].SourceKey]; ok {
			patched[i].TargetSlug = slug
		}
	}
	if err := j.checkSlugUniqueness(patched); err != nil {
		return err
	}

	for i := range j.Pages {
		if slug, ok := overrides[j.Pages[i].SourceKey]; ok {
			j.Pages[i].TargetSlug = slug
			// A renamed slug invalidates any previous lookup result.
			j.Pages[i].CMSPageID = nil
			j.Pages[i].CMSPageExists = nil
		}
	}
	return nil
}

// DuplicateSlugs returns every slug shared by two or more pages, sorted.
func (j *Job) DuplicateSlugs() []string {
	return duplicateSlugs(j.Pages)
}

func (j *Job) checkSlugUniqueness(pages []Page) error {
	dupes := duplicateSlugs(pages)
	if len(dupes) == 0 {
		return nil
	}
	return fmt.Errorf("duplicate target slugs within job: %s", strings.Join(dupes, ", "))
}

func duplicateSlugs(pages []Page) []string {
	seen := make(map[string]int)
	for _, p := range pages {
		seen[p.TargetSlug]++
	}
	var dupes []string
	for slug, n := range seen {
		if n > 1 {
			dupes = append(dupes, slug)
		}
	}
	sort.Strings(dupes)
	return dupes
}

// ApproveAll approves every page unconditionally and moves the job to APPROVED.
func (j *Job) ApproveAll() {
	for i := range j.Pages {
		j.Pages[i].Approval = ApprovalApproved
	}
	j.Status = StatusApproved
}

// SetApproval mutates a single page's approval with no job-level transition.
func (j *Job) SetApproval(sourceKey string, status ApprovalStatus) error {
	switch status {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
	default:
		return fmt.Errorf("invalid approval status %q", status)
	}
	page, ok := j.Page(sourceKey)
	if !ok {
		return fmt.Errorf("no page with source key %q", sourceKey)
	}
	page.Approval = status
	return nil
}

// MarkValidated fires the DRAFT → IN_REVIEW transition after the first
// successful slug validation pass. Idempotent past DRAFT.
func (j *Job) MarkValidated() {
	if j.Status == StatusDraft {
		j.Status = StatusInReview
	}
}

// BeginPublish marks the job in flight before any network call, so a crash
// mid-batch leaves it visibly PUBLISHING rather than falsely APPROVED.
func (j *Job) BeginPublish() {
	j.Status = StatusPublishing
}

// Rollup recomputes the job status from the full set of currently-approved
// pages' publish outcomes: PUBLISHED when every approved page is ok, FAILED
// when none are, PARTIAL otherwise.
func (j *Job) Rollup() JobStatus {
	total, ok := 0, 0
	for _, p := range j.Pages {
		if p.Approval != ApprovalApproved {
			continue
		}
		total++
		if p.PublishStatus == PublishOK {
			ok++
		}
	}

	switch {
	case total > 0 && ok == total:
		j.Status = StatusPublished
	case ok == 0:
		j.Status = StatusFailed
	default:
		j.Status = StatusPartial
	}
	return j.Status
}

// RequestChanges records a structured feedback payload for the downstream
// revision step. When pageKey is empty, every page is included.
func (j *Job) RequestChanges(comment, pageKey string) (*Feedback, error) {
	var pages []FeedbackPage
	for _, p := range j.Pages {
		if pageKey != "" && p.SourceKey != pageKey {
			continue
		}
		pages = append(pages, FeedbackPage{
			SourceKey: p.SourceKey,
			Title:     p.Title,
			Body:      p.Body,
		})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page with source key %q", pageKey)
	}

	fb := &Feedback{
		JobID:     j.ID,
		Brand:     j.Brand,
		Comment:   comment,
		Pages:     pages,
		CreatedAt: time.Now().UTC(),
	}
	j.Feedback = fb
	return fb, nil
}
