package wordpress

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ckough/pagesmith/internal/service/publisher"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:     baseURL,
		Username:    "editor",
		AppPassword: "abcd efgh ijkl",
	}, zap.NewNop())
}

func TestFindPageBySlugFound(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `[{"id":42,"link":"https://example.com/about/"}]`)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	ref, err := client.FindPageBySlug(context.Background(), "about")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, 42, ref.ID)
	assert.Equal(t, "https://example.com/about/", ref.Link)

	assert.Equal(t, "/wp-json/wp/v2/pages", gotPath)
	assert.Equal(t, "slug=about", gotQuery)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("editor:abcd efgh ijkl"))
	assert.Equal(t, want, gotAuth)
}

func TestFindPageBySlugMissReturnsNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	ref, err := newTestClient(ts.URL).FindPageBySlug(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, ref, "an empty result set is a miss, not an error")
}

func TestFindPageBySlugRetriesServerErrors(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"id":7,"link":"https://example.com/x/"}]`)
	}))
	defer ts.Close()

	ref, err := newTestClient(ts.URL).FindPageBySlug(context.Background(), "x")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, 3, calls)
}

func TestFindPageBySlugDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"rest_cannot_read","message":"Sorry, you are not allowed to do that."}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).FindPageBySlug(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx responses are terminal")
	assert.EqualError(t, err, "find page by slug: status 401: Sorry, you are not allowed to do that.")
}

func TestUpdatePageBody(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/wp-json/wp/v2/pages/42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":42,"link":"https://example.com/about/"}`)
	}))
	defer ts.Close()

	ref, err := newTestClient(ts.URL).UpdatePage(context.Background(), 42, publisher.PageWrite{
		Content: "<p>new body</p>",
		Status:  "publish",
		Title:   "About",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, ref.ID)

	assert.Equal(t, "<p>new body</p>", gotBody["content"])
	assert.Equal(t, "publish", gotBody["status"])
	_, hasTitle := gotBody["title"]
	assert.False(t, hasTitle, "title is only sent when explicitly requested")
}

func TestUpdatePageWritesTitleWhenRequested(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":42,"link":"https://example.com/about/"}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).UpdatePage(context.Background(), 42, publisher.PageWrite{
		Content:  "<p>x</p>",
		Status:   "publish",
		Title:    "New Title",
		SetTitle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Title", gotBody["title"])
}

func TestUpdatePageSurfacesRemoteMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"code":"rest_cannot_edit","message":"Sorry, you are not allowed to edit this post."}`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).UpdatePage(context.Background(), 9, publisher.PageWrite{Content: "x", Status: "publish"})
	require.Error(t, err)
	assert.EqualError(t, err, "update page: status 403: Sorry, you are not allowed to edit this post.")
}

func TestUpdatePageErrorFallsBackToRawBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "plain text crash page")
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).UpdatePage(context.Background(), 9, publisher.PageWrite{Content: "x", Status: "publish"})
	require.Error(t, err)
	assert.EqualError(t, err, "update page: status 500: plain text crash page")
}

func TestUploadMedia(t *testing.T) {
	var gotType, gotDisposition string
	var gotData []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/wp-json/wp/v2/media", r.URL.Path)
		gotType = r.Header.Get("Content-Type")
		gotDisposition = r.Header.Get("Content-Disposition")
		gotData, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":311,"source_url":"https://example.com/wp-content/uploads/team-photo.jpg"}`)
	}))
	defer ts.Close()

	ref, err := newTestClient(ts.URL).UploadMedia(context.Background(), "team-photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 311, ref.ID)
	assert.Equal(t, "https://example.com/wp-content/uploads/team-photo.jpg", ref.SourceURL)

	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, `attachment; filename="team-photo.jpg"`, gotDisposition)
	assert.Equal(t, []byte("jpeg-bytes"), gotData)
}

func TestUpdateMediaMeta(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/media/311", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"id":311}`)
	}))
	defer ts.Close()

	err := newTestClient(ts.URL).UpdateMediaMeta(context.Background(), 311, publisher.MediaMeta{
		AltText: "the team",
		Title:   "Team Photo",
	})
	require.NoError(t, err)

	assert.Equal(t, "the team", gotBody["alt_text"])
	assert.Equal(t, "Team Photo", gotBody["title"])
	_, hasCaption := gotBody["caption"]
	assert.False(t, hasCaption, "empty caption is omitted")
}

func TestGetMedia(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/media/55", r.URL.Path)
		fmt.Fprint(w, `{"id":55,"source_url":"https://example.com/wp-content/uploads/old.png"}`)
	}))
	defer ts.Close()

	ref, err := newTestClient(ts.URL).GetMedia(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, 55, ref.ID)
	assert.Equal(t, "https://example.com/wp-content/uploads/old.png", ref.SourceURL)
}

func TestBaseURLTrailingSlashIsTrimmed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/pages", r.URL.Path)
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL + "/").FindPageBySlug(context.Background(), "x")
	require.NoError(t, err)
}
