//go:build integration

package sqlite

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"mediastore/internal/storage"
)

func TestPictureCRUD(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	binary := []byte("fake png bytes")
	created, err := store.CreatePicture(ctx, makeTestPicture("red-camera"), binary)
	if err != nil {
		t.Fatalf("failed to create picture: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created picture has no id")
	}
	if created.SeoFilename != "red-camera" {
		t.Fatalf("inconsistent seo filename: got %v, want red-camera", created.SeoFilename)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("created_at not populated")
	}
	if created.UpdatedAt != nil {
		t.Fatal("updated_at must start empty")
	}

	fetched, err := store.GetPictureByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("could not get picture: %v", err)
	}
	if fetched.Token != created.Token || fetched.Hash != created.Hash {
		t.Fatalf("fetched picture differs: got %+v, want %+v", fetched, created)
	}

	stored, err := store.GetPictureBinary(ctx, created.ID)
	if err != nil {
		t.Fatalf("could not load binary: %v", err)
	}
	if !bytes.Equal(stored, binary) {
		t.Fatalf("binary differs: got %q", stored)
	}

	// metadata update leaves the binary alone
	created.SeoFilename = "blue-camera"
	updated, err := store.UpdatePicture(ctx, created, nil)
	if err != nil {
		t.Fatalf("failed to update picture: %v", err)
	}
	if updated.SeoFilename != "blue-camera" {
		t.Fatalf("seo filename not updated: got %v", updated.SeoFilename)
	}
	if updated.UpdatedAt == nil {
		t.Fatal("expected updated_at to be populated")
	}

	stored, err = store.GetPictureBinary(ctx, created.ID)
	if err != nil {
		t.Fatalf("could not load binary after update: %v", err)
	}
	if !bytes.Equal(stored, binary) {
		t.Fatal("nil binary update overwrote the blob")
	}

	// binary update replaces it
	newBinary := []byte("replacement bytes")
	if _, err := store.UpdatePicture(ctx, created, newBinary); err != nil {
		t.Fatalf("failed to update binary: %v", err)
	}
	stored, _ = store.GetPictureBinary(ctx, created.ID)
	if !bytes.Equal(stored, newBinary) {
		t.Fatalf("binary not replaced: got %q", stored)
	}

	if err := store.DeletePicture(ctx, created.ID); err != nil {
		t.Fatalf("failed to delete picture: %v", err)
	}
	if _, err := store.GetPictureByID(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
	if err := store.DeletePicture(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound on double delete, got %v", err)
	}
}

func TestPictureTokenUnique(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	p := makeTestPicture("original")
	if _, err := store.CreatePicture(ctx, p, nil); err != nil {
		t.Fatalf("failed to create picture: %v", err)
	}

	clone := makeTestPicture("copycat")
	clone.Token = p.Token

	_, err := store.CreatePicture(ctx, clone, nil)
	if !errors.Is(err, storage.ErrUniqueViolation) {
		t.Fatalf("want ErrUniqueViolation, got %v", err)
	}
}

func TestPictureSizeCheck(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	p := makeTestPicture("negative-size")
	p.Size = -1

	_, err := store.CreatePicture(ctx, p, nil)
	if !errors.Is(err, storage.ErrCheckViolation) {
		t.Fatalf("want ErrCheckViolation, got %v", err)
	}
}

func TestGetPictureByHash(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePicture(ctx, makeTestPicture("hashed"), nil)
	if err != nil {
		t.Fatalf("failed to create picture: %v", err)
	}

	found, err := store.GetPictureByHash(ctx, created.Hash)
	if err != nil {
		t.Fatalf("could not find picture by hash: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("wrong picture: got %d, want %d", found.ID, created.ID)
	}

	if _, err := store.GetPictureByHash(ctx, genHash()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown hash, got %v", err)
	}
}

func TestSetSeoFilename(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	created, err := store.CreatePicture(ctx, makeTestPicture("before"), nil)
	if err != nil {
		t.Fatalf("failed to create picture: %v", err)
	}

	if err := store.SetSeoFilename(ctx, created.ID, "after"); err != nil {
		t.Fatalf("failed to set seo filename: %v", err)
	}

	fetched, err := store.GetPictureByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("could not get picture: %v", err)
	}
	if fetched.SeoFilename != "after" {
		t.Fatalf("seo filename not persisted: got %v", fetched.SeoFilename)
	}

	if err := store.SetSeoFilename(ctx, 99999, "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown id, got %v", err)
	}
}

func TestListAndBulkFetch(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	var ids []int64
	for range 5 {
		p, err := store.CreatePicture(ctx, makeTestPicture("listed"), nil)
		if err != nil {
			t.Fatalf("failed to create picture: %v", err)
		}
		ids = append(ids, p.ID)
	}

	count, err := store.CountPictures(ctx)
	if err != nil {
		t.Fatalf("could not count pictures: %v", err)
	}
	if count != 5 {
		t.Fatalf("count: got %d, want 5", count)
	}

	page, err := store.ListPictures(ctx, 0, 2)
	if err != nil {
		t.Fatalf("could not list pictures: %v", err)
	}
	if len(page.Items) != 2 || page.TotalCount != 5 {
		t.Fatalf("first page: got %d items of %d", len(page.Items), page.TotalCount)
	}
	if page.TotalPages() != 3 || !page.HasNextPage() || page.HasPreviousPage() {
		t.Fatalf("paging metadata wrong: %+v", page)
	}

	last, err := store.ListPictures(ctx, 2, 2)
	if err != nil {
		t.Fatalf("could not list last page: %v", err)
	}
	if len(last.Items) != 1 || last.HasNextPage() {
		t.Fatalf("last page: got %d items, hasNext %t", len(last.Items), last.HasNextPage())
	}

	// bulk fetch skips unknown ids silently
	bulk, err := store.GetPicturesByIDs(ctx, append(ids[:3:3], 99999))
	if err != nil {
		t.Fatalf("bulk fetch failed: %v", err)
	}
	if len(bulk) != 3 {
		t.Fatalf("bulk fetch: got %d pictures, want 3", len(bulk))
	}

	empty, err := store.GetPicturesByIDs(ctx, nil)
	if err != nil || empty != nil {
		t.Fatalf("empty id list: got (%v, %v)", empty, err)
	}
}
