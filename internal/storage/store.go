package storage

import (
	"context"
	"errors"
	"time"
)

// Store is the persistence boundary for picture records and their
// product assignments.
type Store interface {
	// pictures
	CreatePicture(ctx context.Context, p *Picture, binary []byte) (*Picture, error)
	GetPictureByID(ctx context.Context, id int64) (*Picture, error)
	GetPicturesByIDs(ctx context.Context, ids []int64) ([]*Picture, error)
	GetPictureByHash(ctx context.Context, hash string) (*Picture, error)
	GetPictureBinary(ctx context.Context, id int64) ([]byte, error)
	UpdatePicture(ctx context.Context, p *Picture, binary []byte) (*Picture, error)
	SetSeoFilename(ctx context.Context, id int64, seoFilename string) error
	DeletePicture(ctx context.Context, id int64) error
	ListPictures(ctx context.Context, pageIndex, pageSize int) (*PagedPictures, error)
	CountPictures(ctx context.Context) (int64, error)

	// product assignments
	GetPicturesByProductID(ctx context.Context, productID int64, limit int) ([]*Picture, error)
	SetProductPicture(ctx context.Context, productID, pictureID int64, displayOrder int) error
	RemoveProductPicture(ctx context.Context, productID, pictureID int64) error

	Close() error
}

var (
	ErrNotFound        = errors.New("record not found")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrCheckViolation  = errors.New("check constraint violation")
)

// Picture is a stored image and its metadata. The binary itself lives in
// the BLOB column, on disk or in object storage depending on the configured
// storage mode, and is never carried on this struct.
type Picture struct {
	ID          int64      `db:"id" json:"id"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	SeoFilename string     `db:"seo_filename" json:"seo_filename"`
	Token       string     `db:"token" json:"token"`
	Hash        string     `db:"hash" json:"-"`
	Size        int64      `db:"size" json:"size"`
	Width       int        `db:"width" json:"width"`
	Height      int        `db:"height" json:"height"`
	IsNew       bool       `db:"is_new" json:"is_new"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// ProductPicture assigns a picture to a product at a position.
type ProductPicture struct {
	ProductID    int64 `db:"product_id" json:"product_id"`
	PictureID    int64 `db:"picture_id" json:"picture_id"`
	DisplayOrder int   `db:"display_order" json:"display_order"`
}

// PagedPictures is one page of picture records plus paging metadata.
// PageIndex is zero-based.
type PagedPictures struct {
	Items      []*Picture `json:"items"`
	TotalCount int64      `json:"total_count"`
	PageIndex  int        `json:"page_index"`
	PageSize   int        `json:"page_size"`
}

func (p *PagedPictures) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	pages := int(p.TotalCount) / p.PageSize
	if int(p.TotalCount)%p.PageSize > 0 {
		pages++
	}
	return pages
}

func (p *PagedPictures) HasNextPage() bool {
	return p.PageIndex+1 < p.TotalPages()
}

func (p *PagedPictures) HasPreviousPage() bool {
	return p.PageIndex > 0
}
