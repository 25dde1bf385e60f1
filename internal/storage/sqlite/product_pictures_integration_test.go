//go:build integration

package sqlite

import (
	"context"
	"errors"
	"testing"

	"mediastore/internal/storage"
)

func TestProductPictureAssignments(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreatePicture(ctx, makeTestPicture("front"), nil)
	if err != nil {
		t.Fatalf("failed to create picture: %v", err)
	}
	second, err := store.CreatePicture(ctx, makeTestPicture("back"), nil)
	if err != nil {
		t.Fatalf("failed to create picture: %v", err)
	}

	const productID int64 = 100

	// assign out of order, listing must come back sorted by display_order
	if err := store.SetProductPicture(ctx, productID, second.ID, 2); err != nil {
		t.Fatalf("failed to assign picture: %v", err)
	}
	if err := store.SetProductPicture(ctx, productID, first.ID, 1); err != nil {
		t.Fatalf("failed to assign picture: %v", err)
	}

	pictures, err := store.GetPicturesByProductID(ctx, productID, 0)
	if err != nil {
		t.Fatalf("could not list product pictures: %v", err)
	}
	if len(pictures) != 2 {
		t.Fatalf("want 2 pictures, got %d", len(pictures))
	}
	if pictures[0].ID != first.ID || pictures[1].ID != second.ID {
		t.Fatalf("wrong order: got [%d %d], want [%d %d]",
			pictures[0].ID, pictures[1].ID, first.ID, second.ID)
	}

	// re-assigning moves the display order instead of failing
	if err := store.SetProductPicture(ctx, productID, first.ID, 3); err != nil {
		t.Fatalf("failed to reorder picture: %v", err)
	}
	pictures, err = store.GetPicturesByProductID(ctx, productID, 0)
	if err != nil {
		t.Fatalf("could not list product pictures: %v", err)
	}
	if pictures[0].ID != second.ID {
		t.Fatalf("reorder had no effect: got %d first", pictures[0].ID)
	}

	// limit caps the result
	limited, err := store.GetPicturesByProductID(ctx, productID, 1)
	if err != nil {
		t.Fatalf("could not list with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("want 1 picture, got %d", len(limited))
	}

	// assigning an unknown picture hits the foreign key
	if err := store.SetProductPicture(ctx, productID, 99999, 0); err == nil {
		t.Fatal("unknown picture accepted")
	}

	if err := store.RemoveProductPicture(ctx, productID, first.ID); err != nil {
		t.Fatalf("failed to remove assignment: %v", err)
	}
	if err := store.RemoveProductPicture(ctx, productID, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound on repeated removal, got %v", err)
	}

	// deleting a picture cascades to its assignments
	if err := store.DeletePicture(ctx, second.ID); err != nil {
		t.Fatalf("failed to delete picture: %v", err)
	}
	pictures, err = store.GetPicturesByProductID(ctx, productID, 0)
	if err != nil {
		t.Fatalf("could not list product pictures: %v", err)
	}
	if len(pictures) != 0 {
		t.Fatalf("cascade failed, %d assignments left", len(pictures))
	}
}
