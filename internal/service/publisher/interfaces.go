package publisher

import (
	"context"

	"github.com/ckough/pagesmith/internal/service/webjob"
)

// PageRef identifies a remote CMS page.
type PageRef struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// PageWrite is the payload for a remote page update. Title is only written
// when SetTitle is set, so manually-edited remote titles are not clobbered.
type PageWrite struct {
	Content  string
	Status   string
	Title    string
	SetTitle bool
}

// MediaRef identifies a remote media record.
type MediaRef struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// MediaMeta is the metadata written onto a remote media record after upload.
type MediaMeta struct {
	AltText string
	Title   string
	Caption string
}

// CMSClient is the wire surface the pipeline needs from the CMS.
type CMSClient interface {
	// FindPageBySlug returns nil with no error when no page matches.
	FindPageBySlug(ctx context.Context, slug string) (*PageRef, error)
	UpdatePage(ctx context.Context, id int, write PageWrite) (*PageRef, error)
	GetMedia(ctx context.Context, id int) (*MediaRef, error)
	UploadMedia(ctx context.Context, filename, mime string, data []byte) (*MediaRef, error)
	UpdateMediaMeta(ctx context.Context, id int, meta MediaMeta) error
}

// MediaSource declares where a media asset's bytes come from.
type MediaSource string

const (
	SourceCMS    MediaSource = "cms"
	SourceURL    MediaSource = "url"
	SourceUpload MediaSource = "upload"
)

// SEOMeta is the required metadata attached to every media asset.
type SEOMeta struct {
	Alt          string `json:"alt"`
	FilenameSlug string `json:"filenameSlug"`
	Title        string `json:"title,omitempty"`
	Caption      string `json:"caption,omitempty"`
}

// MediaAsset describes one media artifact referenced by bindings.
type MediaAsset struct {
	AssetID     string      `json:"assetId"`
	Source      MediaSource `json:"source"`
	CMSMediaID  *int        `json:"cmsMediaId,omitempty"`
	URL         string      `json:"url,omitempty"`
	UploadPath  string      `json:"uploadPath,omitempty"`
	Intent      string      `json:"intent,omitempty"`
	SEO         SEOMeta     `json:"seo"`
	Description string      `json:"llmDescription,omitempty"`
}

type Placement string

const (
	PlaceAbove  Placement = "above"
	PlaceBelow  Placement = "below"
	PlaceInline Placement = "inline"
)

// MediaBinding attaches one asset to one content block at a placement.
type MediaBinding struct {
	AssetID   string    `json:"assetId"`
	Placement Placement `json:"placement"`
	Alignment string    `json:"alignment,omitempty"`
	Size      string    `json:"size,omitempty"`
	LinkTo    string    `json:"linkTo,omitempty"`
}

// ResolvedMedia is the process-local resolution result for one asset:
// built once per publish call, never persisted.
type ResolvedMedia struct {
	RemoteURL string
	RemoteID  int
	Alt       string
	Caption   string
	Intent    string
}

// Block is one content unit handed to the assembler: a body in a declared
// format plus the media bindings to splice into it, in order.
type Block struct {
	Format   webjob.BodyFormat
	Body     string
	Bindings []MediaBinding
}

// MediaManifest carries the asset list for a publish call plus the bindings
// per page, keyed by source key.
type MediaManifest struct {
	Assets   []MediaAsset              `json:"assets"`
	Bindings map[string][]MediaBinding `json:"bindings"`
}

// ReferencedAssets returns the asset IDs bound by the given pages, in first-use
// order with duplicates removed. Unreferenced assets are never resolved.
func (m *MediaManifest) ReferencedAssets(sourceKeys []string) []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]bool)
	var ids []string
	for _, key := range sourceKeys {
		for _, b := range m.Bindings[key] {
			if !seen[b.AssetID] {
				seen[b.AssetID] = true
				ids = append(ids, b.AssetID)
			}
		}
	}
	return ids
}
