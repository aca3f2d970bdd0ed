package publisher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(v int) *int { return &v }

func TestValidateAssetsReportsEveryDefect(t *testing.T) {
	resolver := NewMediaResolver(newFakeCMS(), zap.NewNop())

	assets := []MediaAsset{
		{
			AssetID: "no-alt",
			Source:  SourceURL,
			URL:     "https://example.com/a.jpg",
			SEO:     SEOMeta{FilenameSlug: "a"},
		},
		{
			AssetID: "no-slug",
			Source:  SourceURL,
			URL:     "https://example.com/b.jpg",
			SEO:     SEOMeta{Alt: "b"},
		},
	}

	err := resolver.ValidateAssets(assets, []string{"no-alt", "no-slug", "ghost"})
	require.Error(t, err)

	// One error naming all three independent defects, not just the first.
	msg := err.Error()
	assert.Contains(t, msg, `asset "no-alt": seo.alt is missing`)
	assert.Contains(t, msg, `asset "no-slug": seo.filenameSlug is missing`)
	assert.Contains(t, msg, `unknown asset id "ghost"`)
}

func TestValidateAssetsUnknownSource(t *testing.T) {
	resolver := NewMediaResolver(newFakeCMS(), zap.NewNop())

	assets := []MediaAsset{{
		AssetID: "weird",
		Source:  "carrier-pigeon",
		SEO:     SEOMeta{Alt: "x", FilenameSlug: "x"},
	}}

	err := resolver.ValidateAssets(assets, []string{"weird"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown media source "carrier-pigeon"`)
}

func TestValidateAssetsSourceProvenance(t *testing.T) {
	resolver := NewMediaResolver(newFakeCMS(), zap.NewNop())

	assets := []MediaAsset{
		{AssetID: "c", Source: SourceCMS, SEO: SEOMeta{Alt: "x", FilenameSlug: "x"}},
		{AssetID: "u", Source: SourceURL, SEO: SEOMeta{Alt: "x", FilenameSlug: "x"}},
		{AssetID: "f", Source: SourceUpload, SEO: SEOMeta{Alt: "x", FilenameSlug: "x"}},
	}

	err := resolver.ValidateAssets(assets, []string{"c", "u", "f"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cmsMediaId is missing")
	assert.Contains(t, err.Error(), "url is missing")
	assert.Contains(t, err.Error(), "uploadPath is missing")
}

func TestResolveCMSSource(t *testing.T) {
	cms := newFakeCMS()
	cms.media[55] = MediaRef{ID: 55, SourceURL: "https://example.com/wp-content/uploads/old.png"}

	resolver := NewMediaResolver(cms, zap.NewNop())
	session := resolver.NewSession([]MediaAsset{{
		AssetID:    "existing",
		Source:     SourceCMS,
		CMSMediaID: intPtr(55),
		Intent:     "hero",
		SEO:        SEOMeta{Alt: "old pic", FilenameSlug: "old", Caption: "from the archive"},
	}})

	resolved, err := session.Resolve(context.Background(), []string{"existing"})
	require.NoError(t, err)

	media := resolved["existing"]
	assert.Equal(t, 55, media.RemoteID)
	assert.Equal(t, "https://example.com/wp-content/uploads/old.png", media.RemoteURL)
	assert.Equal(t, "old pic", media.Alt)
	assert.Equal(t, "from the archive", media.Caption)
	assert.Equal(t, "hero", media.Intent)
	assert.Empty(t, cms.uploads, "cms-sourced assets are never uploaded")
}

func TestResolveURLSourceUploadsWithDerivedExtension(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer ts.Close()

	cms := newFakeCMS()
	resolver := NewMediaResolver(cms, zap.NewNop())
	session := resolver.NewSession([]MediaAsset{{
		AssetID: "dl",
		Source:  SourceURL,
		URL:     ts.URL + "/image",
		SEO:     SEOMeta{Alt: "downloaded", FilenameSlug: "team-photo", Title: "Team"},
	}})

	resolved, err := session.Resolve(context.Background(), []string{"dl"})
	require.NoError(t, err)

	// Extension comes from the response content type, filename from the slug.
	require.Equal(t, []string{"team-photo.png"}, cms.uploads)
	// Metadata is written onto the freshly created record.
	require.Len(t, cms.metaWrites, 1)
	assert.Equal(t, resolved["dl"].RemoteID, cms.metaWrites[0])
	assert.Equal(t, "image", resolved["dl"].Intent, "intent defaults when the asset declares none")
}

func TestResolveURLSourceFallsBackToURLExtension(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("bytes"))
	}))
	defer ts.Close()

	cms := newFakeCMS()
	resolver := NewMediaResolver(cms, zap.NewNop())
	session := resolver.NewSession([]MediaAsset{{
		AssetID: "dl",
		Source:  SourceURL,
		URL:     ts.URL + "/pic.webp?cache=1",
		SEO:     SEOMeta{Alt: "x", FilenameSlug: "pic"},
	}})

	_, err := session.Resolve(context.Background(), []string{"dl"})
	require.NoError(t, err)
	require.Equal(t, []string{"pic.webp"}, cms.uploads)
}

func TestResolveUploadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0644))

	cms := newFakeCMS()
	resolver := NewMediaResolver(cms, zap.NewNop())
	session := resolver.NewSession([]MediaAsset{{
		AssetID:    "local",
		Source:     SourceUpload,
		UploadPath: path,
		SEO:        SEOMeta{Alt: "local pic", FilenameSlug: "local-pic"},
	}})

	_, err := session.Resolve(context.Background(), []string{"local"})
	require.NoError(t, err)
	require.Equal(t, []string{"local-pic.jpg"}, cms.uploads)
}

func TestResolveDeduplicatesWithinSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpg"))
	}))
	defer ts.Close()

	cms := newFakeCMS()
	resolver := NewMediaResolver(cms, zap.NewNop())
	session := resolver.NewSession([]MediaAsset{{
		AssetID: "shared",
		Source:  SourceURL,
		URL:     ts.URL + "/shared.jpg",
		SEO:     SEOMeta{Alt: "shared", FilenameSlug: "shared"},
	}})

	// Two bindings on one page, then another page referencing the same asset.
	first, err := session.Resolve(context.Background(), []string{"shared", "shared"})
	require.NoError(t, err)
	second, err := session.Resolve(context.Background(), []string{"shared"})
	require.NoError(t, err)

	assert.Len(t, cms.uploads, 1, "exactly one upload per asset per publish call")
	assert.Equal(t, first["shared"], second["shared"])
}

func TestResolveUnknownAssetFails(t *testing.T) {
	resolver := NewMediaResolver(newFakeCMS(), zap.NewNop())
	session := resolver.NewSession(nil)

	_, err := session.Resolve(context.Background(), []string{"ghost"})
	require.Error(t, err)
}

func TestResolveCMSMissingRecordFails(t *testing.T) {
	cms := newFakeCMS()
	resolver := NewMediaResolver(cms, zap.NewNop())
	session := resolver.NewSession([]MediaAsset{{
		AssetID:    "gone",
		Source:     SourceCMS,
		CMSMediaID: intPtr(404),
		SEO:        SEOMeta{Alt: "x", FilenameSlug: "x"},
	}})

	_, err := session.Resolve(context.Background(), []string{"gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
}
