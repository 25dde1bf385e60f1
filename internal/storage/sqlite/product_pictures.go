package sqlite

import (
	"context"
	"fmt"

	"mediastore/internal/storage"
)

func (s *Store) GetPicturesByProductID(ctx context.Context, productID int64, limit int) ([]*storage.Picture, error) {
	query := `SELECT p.id, p.mime_type, p.seo_filename, p.token, p.hash, p.size, p.width, p.height, p.is_new, p.created_at, p.updated_at
		FROM pictures AS p
		INNER JOIN product_pictures AS pp ON pp.picture_id = p.id
		WHERE pp.product_id = ?
		ORDER BY pp.display_order, p.id`

	args := []any{productID}
	if limit > 0 {
		query += `
		LIMIT ?`
		args = append(args, limit)
	}

	var pictures []*storage.Picture
	if err := s.db.SelectContext(ctx, &pictures, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get pictures for product %d: %w", productID, mapSqlError(err))
	}

	return pictures, nil
}

// SetProductPicture assigns a picture to a product, updating the display
// order if the assignment already exists.
func (s *Store) SetProductPicture(ctx context.Context, productID, pictureID int64, displayOrder int) error {
	query := `INSERT INTO product_pictures (product_id, picture_id, display_order)
		VALUES (?, ?, ?)
		ON CONFLICT (product_id, picture_id) DO UPDATE SET display_order = excluded.display_order`

	if _, err := s.db.ExecContext(ctx, query, productID, pictureID, displayOrder); err != nil {
		return fmt.Errorf("could not assign picture %d to product %d: %w", pictureID, productID, mapSqlError(err))
	}

	return nil
}

func (s *Store) RemoveProductPicture(ctx context.Context, productID, pictureID int64) error {
	query := `DELETE FROM product_pictures
		WHERE product_id = ? AND picture_id = ?`

	result, err := s.db.ExecContext(ctx, query, productID, pictureID)
	if err != nil {
		return fmt.Errorf("could not remove picture %d from product %d: %w", pictureID, productID, mapSqlError(err))
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return nil
}
