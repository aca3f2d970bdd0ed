package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ckough/pagesmith/pkg/util"
)

const defaultExtension = ".jpg"

// MediaResolver turns media asset references into concrete remote URLs/IDs,
// uploading when necessary. Resolution is deduplicated per publish call through
// a session cache; there is no cross-call cache, so re-publishing re-uploads
// url/upload assets.
type MediaResolver struct {
	cms    CMSClient
	client *http.Client
	logger *zap.Logger
}

func NewMediaResolver(cms CMSClient, logger *zap.Logger) *MediaResolver {
	return &MediaResolver{
		cms: cms,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// ValidateAssets checks every referenced asset before any I/O and reports all
// structural defects in a single error: unknown asset IDs, unknown sources, and
// missing required metadata. A defective manifest aborts the whole call.
func (r *MediaResolver) ValidateAssets(assets []MediaAsset, referenced []string) error {
	index := indexAssets(assets)

	var defects []string
	for _, id := range referenced {
		asset, ok := index[id]
		if !ok {
			defects = append(defects, fmt.Sprintf("unknown asset id %q", id))
			continue
		}

		switch asset.Source {
		case SourceCMS:
			if asset.CMSMediaID == nil {
				defects = append(defects, fmt.Sprintf("asset %q: source is cms but cmsMediaId is missing", id))
			}
		case SourceURL:
			if asset.URL == "" {
				defects = append(defects, fmt.Sprintf("asset %q: source is url but url is missing", id))
			}
		case SourceUpload:
			if asset.UploadPath == "" {
				defects = append(defects, fmt.Sprintf("asset %q: source is upload but uploadPath is missing", id))
			}
		default:
			defects = append(defects, fmt.Sprintf("asset %q: unknown media source %q", id, asset.Source))
		}

		if asset.SEO.Alt == "" {
			defects = append(defects, fmt.Sprintf("asset %q: seo.alt is missing", id))
		}
		if asset.SEO.FilenameSlug == "" {
			defects = append(defects, fmt.Sprintf("asset %q: seo.filenameSlug is missing", id))
		}
	}

	if len(defects) > 0 {
		return fmt.Errorf("media manifest is invalid:\n- %s", strings.Join(defects, "\n- "))
	}
	return nil
}

// MediaSession resolves assets for one publish invocation. The cache guarantees
// at most one upload/fetch per asset regardless of how many bindings reference
// it, within and across pages of the same call.
type MediaSession struct {
	resolver *MediaResolver
	assets   map[string]MediaAsset
	cache    map[string]ResolvedMedia
}

func (r *MediaResolver) NewSession(assets []MediaAsset) *MediaSession {
	return &MediaSession{
		resolver: r,
		assets:   indexAssets(assets),
		cache:    make(map[string]ResolvedMedia),
	}
}

// Resolve returns resolved media for the given asset IDs, fetching or uploading
// only those not already in the session cache.
func (s *MediaSession) Resolve(ctx context.Context, ids []string) (map[string]ResolvedMedia, error) {
	out := make(map[string]ResolvedMedia, len(ids))
	for _, id := range ids {
		if media, ok := s.cache[id]; ok {
			out[id] = media
			continue
		}

		asset, ok := s.assets[id]
		if !ok {
			return nil, fmt.Errorf("unknown asset id %q", id)
		}

		media, err := s.resolver.resolveAsset(ctx, asset)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve asset %q: %w", id, err)
		}

		s.cache[id] = *media
		out[id] = *media
	}
	return out, nil
}

func (r *MediaResolver) resolveAsset(ctx context.Context, asset MediaAsset) (*ResolvedMedia, error) {
	var ref *MediaRef
	var err error

	switch asset.Source {
	case SourceCMS:
		if asset.CMSMediaID == nil {
			return nil, fmt.Errorf("source is cms but cmsMediaId is missing")
		}
		ref, err = r.cms.GetMedia(ctx, *asset.CMSMediaID)
		if err != nil {
			return nil, err
		}
	case SourceURL:
		data, ext, derr := r.download(ctx, asset.URL)
		if derr != nil {
			return nil, derr
		}
		ref, err = r.upload(ctx, asset, data, ext)
		if err != nil {
			return nil, err
		}
	case SourceUpload:
		data, rerr := os.ReadFile(asset.UploadPath)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read upload file: %w", rerr)
		}
		ext := util.FileExtensionFromURL(asset.UploadPath)
		if ext == "" {
			ext = extensionFromContentType(http.DetectContentType(data))
		}
		ref, err = r.upload(ctx, asset, data, ext)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown media source %q", asset.Source)
	}

	intent := asset.Intent
	if intent == "" {
		intent = "image"
	}

	r.logger.Info("Media asset resolved",
		zap.String("asset_id", asset.AssetID),
		zap.String("source", string(asset.Source)),
		zap.Int("remote_id", ref.ID),
		zap.String("remote_url", ref.SourceURL))

	return &ResolvedMedia{
		RemoteURL: ref.SourceURL,
		RemoteID:  ref.ID,
		Alt:       asset.SEO.Alt,
		Caption:   asset.SEO.Caption,
		Intent:    intent,
	}, nil
}

func (r *MediaResolver) upload(ctx context.Context, asset MediaAsset, data []byte, ext string) (*MediaRef, error) {
	if ext == "" {
		ext = defaultExtension
	}
	filename := asset.SEO.FilenameSlug + ext
	mime := mimeForExtension(ext)

	ref, err := r.cms.UploadMedia(ctx, filename, mime, data)
	if err != nil {
		return nil, err
	}

	meta := MediaMeta{
		AltText: asset.SEO.Alt,
		Title:   asset.SEO.Title,
		Caption: asset.SEO.Caption,
	}
	if err := r.cms.UpdateMediaMeta(ctx, ref.ID, meta); err != nil {
		return nil, err
	}
	return ref, nil
}

// download fetches the asset bytes and derives a file extension from the
// response content type, falling back to the URL's own extension.
func (r *MediaResolver) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}

	ext := extensionFromContentType(resp.Header.Get("Content-Type"))
	if ext == "" {
		ext = util.FileExtensionFromURL(url)
	}
	return data, ext, nil
}

func extensionFromContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	switch strings.TrimSpace(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}

func mimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

func indexAssets(assets []MediaAsset) map[string]MediaAsset {
	index := make(map[string]MediaAsset, len(assets))
	for _, a := range assets {
		index[a.AssetID] = a
	}
	return index
}
