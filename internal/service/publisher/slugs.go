package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ckough/pagesmith/internal/service/webjob"
)

// SlugLookup is the per-page result of a slug validation pass.
type SlugLookup struct {
	SourceKey string `json:"source_key"`
	Slug      string `json:"slug"`
	Exists    bool   `json:"exists"`
	CMSPageID *int   `json:"cms_page_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SlugResolver looks up every page's target slug on the live CMS to predict
// create-vs-update and pre-fill the remote page identity. Pure read: safe to
// re-run any number of times.
type SlugResolver struct {
	cms    CMSClient
	logger *zap.Logger
}

func NewSlugResolver(cms CMSClient, logger *zap.Logger) *SlugResolver {
	return &SlugResolver{cms: cms, logger: logger}
}

// ResolveAll runs the batch lookup across all pages. Duplicate slugs reject the
// whole operation before any network call. Individual lookup failures leave
// that page unchanged and are reported in the result instead of aborting the
// batch. A completed pass fires the job's DRAFT → IN_REVIEW transition.
func (r *SlugResolver) ResolveAll(ctx context.Context, job *webjob.Job) ([]SlugLookup, error) {
	if dupes := job.DuplicateSlugs(); len(dupes) > 0 {
		return nil, fmt.Errorf("cannot validate slugs: duplicate target slugs within job: %v", dupes)
	}

	results := make([]SlugLookup, 0, len(job.Pages))
	for i := range job.Pages {
		page := &job.Pages[i]
		lookup := SlugLookup{SourceKey: page.SourceKey, Slug: page.TargetSlug}

		ref, err := r.cms.FindPageBySlug(ctx, page.TargetSlug)
		if err != nil {
			r.logger.Warn("Slug lookup failed",
				zap.String("source_key", page.SourceKey),
				zap.String("slug", page.TargetSlug),
				zap.Error(err))
			lookup.Error = err.Error()
			results = append(results, lookup)
			continue
		}

		exists := ref != nil
		page.CMSPageExists = &exists
		if exists {
			id := ref.ID
			page.CMSPageID = &id
			lookup.CMSPageID = &id
		} else {
			page.CMSPageID = nil
		}
		lookup.Exists = exists
		results = append(results, lookup)
	}

	job.MarkValidated()
	return results, nil
}
