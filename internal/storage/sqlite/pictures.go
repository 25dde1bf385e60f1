package sqlite

import (
	"context"
	"fmt"

	"mediastore/internal/storage"

	"github.com/jmoiron/sqlx"
)

// pictureColumns deliberately leaves out the binary BLOB; metadata reads
// must never drag megabytes of image data through the connection.
const pictureColumns = `id, mime_type, seo_filename, token, hash, size, width, height, is_new, created_at, updated_at`

func (s *Store) CreatePicture(ctx context.Context, p *storage.Picture, binary []byte) (*storage.Picture, error) {
	query := `INSERT INTO pictures (mime_type, seo_filename, token, hash, size, width, height, is_new, binary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + pictureColumns

	var created storage.Picture
	err := s.db.GetContext(ctx, &created, query,
		p.MimeType, p.SeoFilename, p.Token, p.Hash, p.Size, p.Width, p.Height, p.IsNew, binary)
	if err != nil {
		return nil, fmt.Errorf("cannot create picture %q: %w", p.SeoFilename, mapSqlError(err))
	}
	return &created, nil
}

func (s *Store) GetPictureByID(ctx context.Context, id int64) (*storage.Picture, error) {
	query := `SELECT ` + pictureColumns + ` FROM pictures
		WHERE id = ?
		LIMIT 1`

	var p storage.Picture
	if err := s.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, fmt.Errorf("cannot find picture id %d: %w", id, mapSqlError(err))
	}
	return &p, nil
}

func (s *Store) GetPicturesByIDs(ctx context.Context, ids []int64) ([]*storage.Picture, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+pictureColumns+` FROM pictures WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("cannot build bulk picture query: %w", err)
	}

	var pictures []*storage.Picture
	if err := s.db.SelectContext(ctx, &pictures, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("cannot fetch pictures by ids: %w", mapSqlError(err))
	}
	return pictures, nil
}

func (s *Store) GetPictureByHash(ctx context.Context, hash string) (*storage.Picture, error) {
	query := `SELECT ` + pictureColumns + ` FROM pictures
		WHERE hash = ?
		ORDER BY id
		LIMIT 1`

	var p storage.Picture
	if err := s.db.GetContext(ctx, &p, query, hash); err != nil {
		return nil, fmt.Errorf("cannot find picture with hash %q: %w", hash, mapSqlError(err))
	}
	return &p, nil
}

func (s *Store) GetPictureBinary(ctx context.Context, id int64) ([]byte, error) {
	query := `SELECT binary FROM pictures
		WHERE id = ?
		LIMIT 1`

	var binary []byte
	if err := s.db.GetContext(ctx, &binary, query, id); err != nil {
		return nil, fmt.Errorf("cannot load binary for picture %d: %w", id, mapSqlError(err))
	}
	return binary, nil
}

// UpdatePicture rewrites metadata and, when binary is non-nil, the stored
// BLOB as well. Passing a nil binary leaves the column untouched.
func (s *Store) UpdatePicture(ctx context.Context, p *storage.Picture, binary []byte) (*storage.Picture, error) {
	query := `UPDATE pictures
		SET mime_type = ?, seo_filename = ?, token = ?, hash = ?, size = ?, width = ?, height = ?, is_new = ?,
			binary = CASE WHEN ? THEN ? ELSE binary END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING ` + pictureColumns

	var updated storage.Picture
	err := s.db.GetContext(ctx, &updated, query,
		p.MimeType, p.SeoFilename, p.Token, p.Hash, p.Size, p.Width, p.Height, p.IsNew,
		binary != nil, binary, p.ID)
	if err != nil {
		return nil, fmt.Errorf("cannot update picture %d: %w", p.ID, mapSqlError(err))
	}
	return &updated, nil
}

func (s *Store) SetSeoFilename(ctx context.Context, id int64, seoFilename string) error {
	query := `UPDATE pictures SET seo_filename = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, seoFilename, id)
	if err != nil {
		return fmt.Errorf("could not set seo filename: %w", mapSqlError(err))
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) DeletePicture(ctx context.Context, id int64) error {
	query := `DELETE FROM pictures WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("could not delete picture: %w", mapSqlError(err))
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *Store) ListPictures(ctx context.Context, pageIndex, pageSize int) (*storage.PagedPictures, error) {
	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	query := `SELECT ` + pictureColumns + ` FROM pictures
		ORDER BY id
		LIMIT ?
		OFFSET ?`

	var (
		total    int64
		pictures []*storage.Picture
	)

	// count and page read see the same snapshot
	err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM pictures`); err != nil {
			return err
		}
		return tx.SelectContext(ctx, &pictures, query, pageSize, pageIndex*pageSize)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pictures: %w", mapSqlError(err))
	}

	return &storage.PagedPictures{
		Items:      pictures,
		TotalCount: total,
		PageIndex:  pageIndex,
		PageSize:   pageSize,
	}, nil
}

func (s *Store) CountPictures(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM pictures`); err != nil {
		return 0, fmt.Errorf("failed to count pictures: %w", mapSqlError(err))
	}
	return count, nil
}
