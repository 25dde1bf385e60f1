package media

import (
	"context"
	"io"

	"mediastore/internal/storage"
)

// PictureService is the contract the HTTP layer programs against.
type PictureService interface {
	Validate(binary []byte, declaredMime string) (*ImageInfo, error)
	FindDuplicate(ctx context.Context, binary []byte) (*storage.Picture, error)
	Insert(ctx context.Context, binary []byte, declaredMime, displayName string, isNew bool) (*storage.Picture, error)
	Update(ctx context.Context, id int64, binary []byte, declaredMime, displayName string) (*storage.Picture, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*storage.Picture, error)
	GetMany(ctx context.Context, ids []int64) ([]*storage.Picture, error)
	List(ctx context.Context, pageIndex, pageSize int) (*storage.PagedPictures, error)
	ListByProduct(ctx context.Context, productID int64, limit int) ([]*storage.Picture, error)
	AssignToProduct(ctx context.Context, productID, pictureID int64, displayOrder int) error
	UnassignFromProduct(ctx context.Context, productID, pictureID int64) error
	LoadBinary(ctx context.Context, p *storage.Picture) ([]byte, error)
	SetSeoFilename(ctx context.Context, id int64, displayName string) (*storage.Picture, error)
	URL(p *storage.Picture, targetSize int, storeLocation string, fallback PictureType) string
}

// VariantService produces downscaled webp variants in the background.
type VariantService interface {
	Enqueue(ctx context.Context, job VariantJob) error
}

// BinaryOpener streams a picture's original binary regardless of where it
// is stored.
type BinaryOpener interface {
	OpenOriginal(ctx context.Context, id int64) (io.ReadCloser, error)
}
