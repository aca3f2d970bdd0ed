package publisher

import (
	"context"
	"fmt"
)

// fakeCMS is an in-memory CMS used across the publisher tests. Every network
// operation is counted so tests can assert call volumes.
type fakeCMS struct {
	// pagesBySlug maps slug -> remote page.
	pagesBySlug map[string]PageRef
	// media maps remote media id -> media record.
	media map[int]MediaRef
	// failSlug forces lookups for a slug to fail.
	failSlug map[string]error
	// failUpdate forces page writes for a page id to fail.
	failUpdate map[int]error

	nextMediaID int

	findCalls   int
	updateCalls []int
	uploads     []string
	metaWrites  []int
	getMedia    []int
	updated     map[int]PageWrite
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		pagesBySlug: make(map[string]PageRef),
		media:       make(map[int]MediaRef),
		failSlug:    make(map[string]error),
		failUpdate:  make(map[int]error),
		nextMediaID: 100,
		updated:     make(map[int]PageWrite),
	}
}

func (f *fakeCMS) FindPageBySlug(_ context.Context, slug string) (*PageRef, error) {
	f.findCalls++
	if err := f.failSlug[slug]; err != nil {
		return nil, err
	}
	ref, ok := f.pagesBySlug[slug]
	if !ok {
		return nil, nil
	}
	return &ref, nil
}

func (f *fakeCMS) UpdatePage(_ context.Context, id int, write PageWrite) (*PageRef, error) {
	f.updateCalls = append(f.updateCalls, id)
	if err := f.failUpdate[id]; err != nil {
		return nil, err
	}
	f.updated[id] = write
	return &PageRef{ID: id, Link: fmt.Sprintf("https://example.com/?page_id=%d", id)}, nil
}

func (f *fakeCMS) GetMedia(_ context.Context, id int) (*MediaRef, error) {
	f.getMedia = append(f.getMedia, id)
	ref, ok := f.media[id]
	if !ok {
		return nil, fmt.Errorf("get media: status 404: no media with id %d", id)
	}
	return &ref, nil
}

func (f *fakeCMS) UploadMedia(_ context.Context, filename, _ string, _ []byte) (*MediaRef, error) {
	f.uploads = append(f.uploads, filename)
	f.nextMediaID++
	ref := MediaRef{
		ID:        f.nextMediaID,
		SourceURL: fmt.Sprintf("https://example.com/wp-content/uploads/%s", filename),
	}
	f.media[ref.ID] = ref
	return &ref, nil
}

func (f *fakeCMS) UpdateMediaMeta(_ context.Context, id int, _ MediaMeta) error {
	f.metaWrites = append(f.metaWrites, id)
	return nil
}
