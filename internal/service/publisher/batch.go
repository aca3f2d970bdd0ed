package publisher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ckough/pagesmith/internal/service/webjob"
)

// PublishOptions selects and shapes one publish batch.
type PublishOptions struct {
	// DryRun computes planned actions without any mutating network call.
	DryRun bool
	// RetryFailed narrows selection to approved pages whose last attempt failed.
	RetryFailed bool
	// UpdateTitles opts in to writing page titles on the remote records.
	UpdateTitles bool
}

// PagePlan is the dry-run outcome for one page.
type PagePlan struct {
	SourceKey string `json:"source_key"`
	Slug      string `json:"slug"`
	Action    string `json:"action"`
	Error     string `json:"error,omitempty"`
}

// PageResult is the publish outcome for one page.
type PageResult struct {
	SourceKey string `json:"source_key"`
	OK        bool   `json:"ok"`
	Link      string `json:"link,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult is the rollup of one publish invocation.
type BatchResult struct {
	JobStatus   webjob.JobStatus `json:"job_status"`
	DryRun      bool             `json:"dry_run"`
	Plans       []PagePlan       `json:"plans,omitempty"`
	Pages       []PageResult     `json:"pages,omitempty"`
	OKCount     int              `json:"ok_count"`
	FailedCount int              `json:"failed_count"`
}

// BatchPublisher pushes a job's selected pages to the CMS, one page at a time.
// Pages are processed strictly sequentially so one page's failure or slowness
// cannot race with a sibling's network calls against the same credentials.
type BatchPublisher struct {
	cms    CMSClient
	media  *MediaResolver
	logger *zap.Logger
}

func NewBatchPublisher(cms CMSClient, logger *zap.Logger) *BatchPublisher {
	return &BatchPublisher{
		cms:    cms,
		media:  NewMediaResolver(cms, logger),
		logger: logger,
	}
}

// Publish runs one batch over the job's selected pages. Per-page failures are
// recorded on that page only and never abort the loop; structurally invalid
// media manifests abort the whole call before any network traffic.
func (p *BatchPublisher) Publish(ctx context.Context, job *webjob.Job, manifest *MediaManifest, opts PublishOptions) (*BatchResult, error) {
	selected := selectPages(job, opts)
	if len(selected) == 0 {
		if opts.RetryFailed {
			return nil, fmt.Errorf("no approved pages with a failed publish to retry")
		}
		return nil, fmt.Errorf("no approved pages to publish")
	}

	keys := make([]string, len(selected))
	for i, idx := range selected {
		keys[i] = job.Pages[idx].SourceKey
	}

	referenced := manifest.ReferencedAssets(keys)
	if len(referenced) > 0 {
		if err := p.media.ValidateAssets(manifest.Assets, referenced); err != nil {
			return nil, err
		}
	}

	if opts.DryRun {
		return p.plan(ctx, job, selected)
	}

	// Mark the job in flight before the first network call.
	job.BeginPublish()

	var session *MediaSession
	if manifest != nil {
		session = p.media.NewSession(manifest.Assets)
	}

	result := &BatchResult{}
	for _, idx := range selected {
		page := &job.Pages[idx]
		pageResult := p.publishPage(ctx, page, manifest, session, opts)
		applyResult(page, pageResult)
		result.Pages = append(result.Pages, pageResult)
		if pageResult.OK {
			result.OKCount++
		} else {
			result.FailedCount++
		}

		p.logger.Info("Page publish attempt finished",
			zap.String("job_id", job.ID),
			zap.String("source_key", page.SourceKey),
			zap.Bool("ok", pageResult.OK))
	}

	result.JobStatus = job.Rollup()
	return result, nil
}

func selectPages(job *webjob.Job, opts PublishOptions) []int {
	var selected []int
	for i := range job.Pages {
		page := &job.Pages[i]
		if page.Approval != webjob.ApprovalApproved {
			continue
		}
		if opts.RetryFailed && page.PublishStatus != webjob.PublishFailed {
			continue
		}
		selected = append(selected, i)
	}
	return selected
}

// plan performs the read-only dry run: slug lookups only, no media uploads and
// no page writes, returning the create/update action each page would take.
func (p *BatchPublisher) plan(ctx context.Context, job *webjob.Job, selected []int) (*BatchResult, error) {
	result := &BatchResult{JobStatus: job.Status, DryRun: true}
	for _, idx := range selected {
		page := &job.Pages[idx]
		plan := PagePlan{SourceKey: page.SourceKey, Slug: page.TargetSlug}

		if page.CMSPageID != nil {
			plan.Action = "update"
		} else {
			ref, err := p.cms.FindPageBySlug(ctx, page.TargetSlug)
			switch {
			case err != nil:
				plan.Action = "unknown"
				plan.Error = err.Error()
			case ref != nil:
				plan.Action = "update"
			default:
				plan.Action = "create"
			}
		}
		result.Plans = append(result.Plans, plan)
	}
	return result, nil
}

func (p *BatchPublisher) publishPage(ctx context.Context, page *webjob.Page, manifest *MediaManifest, session *MediaSession, opts PublishOptions) PageResult {
	result := PageResult{SourceKey: page.SourceKey}

	var bindings []MediaBinding
	if manifest != nil {
		bindings = manifest.Bindings[page.SourceKey]
	}

	var resolved map[string]ResolvedMedia
	if len(bindings) > 0 {
		ids := manifest.ReferencedAssets([]string{page.SourceKey})
		var err error
		resolved, err = session.Resolve(ctx, ids)
		if err != nil {
			result.Error = fmt.Sprintf("media resolution: %v", err)
			return result
		}
	}

	markup, err := AssembleBlock(Block{
		Format:   page.Format,
		Body:     page.Body,
		Bindings: bindings,
	}, resolved)
	if err != nil {
		result.Error = fmt.Sprintf("content assembly: %v", err)
		return result
	}

	// Resolve the remote page identity: reuse a known id, otherwise look the
	// slug up. A lookup miss fails this page, not the batch.
	pageID := page.CMSPageID
	if pageID == nil {
		ref, err := p.cms.FindPageBySlug(ctx, page.TargetSlug)
		if err != nil {
			result.Error = fmt.Sprintf("slug lookup: %v", err)
			return result
		}
		if ref == nil {
			result.Error = fmt.Sprintf("no existing page with slug %q", page.TargetSlug)
			return result
		}
		id := ref.ID
		pageID = &id
	}

	ref, err := p.cms.UpdatePage(ctx, *pageID, PageWrite{
		Content:  markup,
		Status:   "publish",
		Title:    page.Title,
		SetTitle: opts.UpdateTitles,
	})
	if err != nil {
		result.Error = fmt.Sprintf("page write: %v", err)
		return result
	}

	page.CMSPageID = pageID
	result.OK = true
	result.Link = ref.Link
	return result
}

func applyResult(page *webjob.Page, result PageResult) {
	outcome := &webjob.PublishOutcome{
		OK:          result.OK,
		Link:        result.Link,
		Error:       result.Error,
		AttemptedAt: time.Now().UTC(),
	}
	page.LastResult = outcome
	if result.OK {
		page.PublishStatus = webjob.PublishOK
		exists := true
		page.CMSPageExists = &exists
	} else {
		page.PublishStatus = webjob.PublishFailed
	}
}
