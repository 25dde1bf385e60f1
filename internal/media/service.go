package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"

	"mediastore/internal/config"
	"mediastore/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// PictureType selects the fallback image served when an entity has no
// picture of its own.
type PictureType int

const (
	PictureEntity PictureType = 1
	PictureAvatar PictureType = 10
)

// ImageInfo is what validation learns about an uploaded binary.
type ImageInfo struct {
	MimeType string
	Width    int
	Height   int
}

var supportedExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Service struct {
	store     storage.Store
	blobs     storage.Provider
	cfg       config.MediaConfig
	storeURL  string
	namespace uuid.UUID
	logger    *slog.Logger
	tracer    trace.Tracer
}

var _ PictureService = (*Service)(nil)
var _ BinaryOpener = (*Service)(nil)

func NewService(store storage.Store, blobs storage.Provider, cfg config.MediaConfig, storeURL string, logger *slog.Logger) (*Service, error) {
	ns, err := uuid.FromString(cfg.TokenNamespace)
	if err != nil {
		return nil, fmt.Errorf("invalid token namespace: %w", err)
	}

	return &Service{
		store:     store,
		blobs:     blobs,
		cfg:       cfg,
		storeURL:  strings.TrimSuffix(storeURL, "/"),
		namespace: ns,
		logger:    logger,
		tracer:    otel.Tracer("mediastore/media"),
	}, nil
}

// Validate checks an uploaded binary against the configured limits. The
// declared mime type is only a hint; the binary is sniffed and the sniffed
// type wins.
func (s *Service) Validate(binary []byte, declaredMime string) (*ImageInfo, error) {
	if len(binary) == 0 {
		return nil, ErrEmptyBinary
	}
	if int64(len(binary)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrBinaryTooLarge, len(binary), s.cfg.MaxUploadBytes)
	}

	detected := mimetype.Detect(binary)
	if _, ok := supportedExtensions[detected.String()]; !ok {
		return nil, fmt.Errorf("%w: detected %q", ErrUnsupportedFormat, detected.String())
	}
	if declaredMime != "" && declaredMime != detected.String() {
		s.logger.Debug("declared mime type overridden", "declared", declaredMime, "detected", detected.String())
	}

	width, height, err := Dimensions(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if width > s.cfg.MaxImageWidth || height > s.cfg.MaxImageHeight {
		return nil, fmt.Errorf("%w: %dx%d (max %dx%d)",
			ErrImageTooLarge, width, height, s.cfg.MaxImageWidth, s.cfg.MaxImageHeight)
	}

	return &ImageInfo{
		MimeType: detected.String(),
		Width:    width,
		Height:   height,
	}, nil
}

// Dimensions decodes only the image header, not the pixel data.
func Dimensions(binary []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(binary))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Hash returns the sha256 hex digest used for duplicate detection.
func Hash(binary []byte) string {
	sum := sha256.Sum256(binary)
	return hex.EncodeToString(sum[:])
}

// FindDuplicate looks for an already stored picture with identical binary
// content. The hash narrows candidates; a byte comparison of the stored
// binary rules out hash collisions. Returns (nil, nil) when no duplicate
// exists.
func (s *Service) FindDuplicate(ctx context.Context, binary []byte) (*storage.Picture, error) {
	if len(binary) == 0 {
		return nil, ErrEmptyBinary
	}

	candidate, err := s.store.GetPictureByHash(ctx, Hash(binary))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stored, err := s.LoadBinary(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("cannot load candidate %d for comparison: %w", candidate.ID, err)
	}

	if !bytes.Equal(binary, stored) {
		return nil, nil
	}
	return candidate, nil
}

// Insert validates and stores a new picture. Inserting a binary that is
// already stored returns the existing record instead of a second copy.
func (s *Service) Insert(ctx context.Context, binary []byte, declaredMime, displayName string, isNew bool) (*storage.Picture, error) {
	ctx, span := s.tracer.Start(ctx, "Media.Insert")
	defer span.End()

	info, err := s.Validate(binary, declaredMime)
	if err != nil {
		return nil, err
	}

	hash := Hash(binary)
	p := &storage.Picture{
		MimeType:    info.MimeType,
		SeoFilename: SeoFilename(displayName),
		Token:       uuid.NewV5(s.namespace, hash).String(),
		Hash:        hash,
		Size:        int64(len(binary)),
		Width:       info.Width,
		Height:      info.Height,
		IsNew:       isNew,
	}

	var dbBinary []byte
	if s.cfg.StorageMode == config.StorageModeDB {
		dbBinary = binary
	}

	created, err := s.store.CreatePicture(ctx, p, dbBinary)
	if errors.Is(err, storage.ErrUniqueViolation) {
		// token is derived from the content hash, so a unique violation
		// means this exact binary is already stored
		if dup, dupErr := s.FindDuplicate(ctx, binary); dupErr == nil && dup != nil {
			return dup, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("picture.id", created.ID))

	if s.cfg.StorageMode != config.StorageModeDB {
		if err := s.blobs.Save(ctx, OriginalKey(created), bytes.NewReader(binary)); err != nil {
			// compensate so we never keep a record without a binary
			if delErr := s.store.DeletePicture(ctx, created.ID); delErr != nil {
				s.logger.Error("orphaned picture record after failed blob save", "id", created.ID, "err", delErr)
			}
			return nil, fmt.Errorf("cannot store binary for picture %d: %w", created.ID, err)
		}
	}

	return created, nil
}

// Update replaces a picture's binary and display name. Thumbnails and a
// stale original with a different extension are dropped.
func (s *Service) Update(ctx context.Context, id int64, binary []byte, declaredMime, displayName string) (*storage.Picture, error) {
	ctx, span := s.tracer.Start(ctx, "Media.Update", trace.WithAttributes(attribute.Int64("picture.id", id)))
	defer span.End()

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	info, err := s.Validate(binary, declaredMime)
	if err != nil {
		return nil, err
	}

	hash := Hash(binary)
	next := &storage.Picture{
		ID:          existing.ID,
		MimeType:    info.MimeType,
		SeoFilename: existing.SeoFilename,
		Token:       uuid.NewV5(s.namespace, hash).String(),
		Hash:        hash,
		Size:        int64(len(binary)),
		Width:       info.Width,
		Height:      info.Height,
		IsNew:       existing.IsNew,
	}
	if displayName != "" {
		next.SeoFilename = SeoFilename(displayName)
	}

	var dbBinary []byte
	if s.cfg.StorageMode == config.StorageModeDB {
		dbBinary = binary
	}

	// the blob goes in before the row so a failed save never leaves
	// metadata pointing at a binary that was not stored
	if s.cfg.StorageMode != config.StorageModeDB {
		if err := s.blobs.Save(ctx, OriginalKey(next), bytes.NewReader(binary)); err != nil {
			return nil, fmt.Errorf("cannot store binary for picture %d: %w", next.ID, err)
		}
	}

	updated, err := s.store.UpdatePicture(ctx, next, dbBinary)
	if err != nil {
		if s.cfg.StorageMode != config.StorageModeDB && OriginalKey(next) != OriginalKey(existing) {
			if delErr := s.blobs.Delete(ctx, OriginalKey(next)); delErr != nil {
				s.logger.Warn("could not delete orphaned binary", "key", OriginalKey(next), "err", delErr)
			}
		}
		return nil, err
	}

	if OriginalKey(existing) != OriginalKey(updated) {
		if err := s.blobs.Delete(ctx, OriginalKey(existing)); err != nil {
			s.logger.Warn("could not delete stale original", "key", OriginalKey(existing), "err", err)
		}
	}
	s.deleteThumbs(ctx, updated.ID)

	return updated, nil
}

// Delete removes the record, the stored binary and all thumbnails.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "Media.Delete", trace.WithAttributes(attribute.Int64("picture.id", id)))
	defer span.End()

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeletePicture(ctx, id); err != nil {
		return err
	}

	if s.cfg.StorageMode != config.StorageModeDB {
		if err := s.blobs.Delete(ctx, OriginalKey(p)); err != nil {
			s.logger.Warn("could not delete original blob", "key", OriginalKey(p), "err", err)
		}
	}
	s.deleteThumbs(ctx, id)

	return nil
}

func (s *Service) deleteThumbs(ctx context.Context, id int64) {
	for _, size := range s.cfg.ThumbnailSizes {
		key := ThumbKey(id, size)
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("could not delete thumbnail", "key", key, "err", err)
		}
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*storage.Picture, error) {
	p, err := s.store.GetPictureByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrPictureNotFound, id)
	}
	return p, err
}

func (s *Service) GetMany(ctx context.Context, ids []int64) ([]*storage.Picture, error) {
	return s.store.GetPicturesByIDs(ctx, ids)
}

func (s *Service) List(ctx context.Context, pageIndex, pageSize int) (*storage.PagedPictures, error) {
	return s.store.ListPictures(ctx, pageIndex, pageSize)
}

func (s *Service) ListByProduct(ctx context.Context, productID int64, limit int) ([]*storage.Picture, error) {
	return s.store.GetPicturesByProductID(ctx, productID, limit)
}

func (s *Service) AssignToProduct(ctx context.Context, productID, pictureID int64, displayOrder int) error {
	return s.store.SetProductPicture(ctx, productID, pictureID, displayOrder)
}

func (s *Service) UnassignFromProduct(ctx context.Context, productID, pictureID int64) error {
	return s.store.RemoveProductPicture(ctx, productID, pictureID)
}

// LoadBinary fetches the original binary per the storage mode. In db mode
// an empty BLOB falls back to the blob provider, so switching modes does
// not orphan older pictures.
func (s *Service) LoadBinary(ctx context.Context, p *storage.Picture) ([]byte, error) {
	if p == nil {
		return nil, ErrPictureNotFound
	}

	if s.cfg.StorageMode == config.StorageModeDB {
		binary, err := s.store.GetPictureBinary(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(binary) > 0 {
			return binary, nil
		}
	}

	rc, err := s.blobs.Open(ctx, OriginalKey(p))
	if err != nil {
		return nil, fmt.Errorf("cannot open binary for picture %d: %w", p.ID, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// OpenOriginal adapts LoadBinary to a stream for the variant processor.
func (s *Service) OpenOriginal(ctx context.Context, id int64) (io.ReadCloser, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	binary, err := s.LoadBinary(ctx, p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(binary)), nil
}

// SetSeoFilename re-slugs the display name and persists it. Thumbnails are
// keyed by id and size, so no cached variant becomes stale.
func (s *Service) SetSeoFilename(ctx context.Context, id int64, displayName string) (*storage.Picture, error) {
	seoName := SeoFilename(displayName)

	err := s.store.SetSeoFilename(ctx, id, seoName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrPictureNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// URL resolves the public URL for a picture at a target size. A nil or
// zero picture yields the default image for the fallback type. An empty
// storeLocation falls back to the configured store URL; targetSize <= 0
// addresses the original.
func (s *Service) URL(p *storage.Picture, targetSize int, storeLocation string, fallback PictureType) string {
	base := strings.TrimSuffix(storeLocation, "/")
	if base == "" {
		base = s.storeURL
	}

	if p == nil || p.ID == 0 {
		return s.defaultURL(base, fallback)
	}

	name := p.SeoFilename
	if name == "" {
		name = p.Token
	}

	if targetSize <= 0 {
		return fmt.Sprintf("%s/media/image/%d/%s%s", base, p.ID, name, ExtByMime(p.MimeType))
	}
	return fmt.Sprintf("%s/media/image/%d/%s_%d.webp", base, p.ID, name, targetSize)
}

func (s *Service) defaultURL(base string, fallback PictureType) string {
	name := s.cfg.DefaultImage
	if fallback == PictureAvatar {
		name = s.cfg.DefaultAvatar
	}
	return fmt.Sprintf("%s/static/%s.png", base, name)
}

// OriginalKey is the blob key for a picture's source binary.
func OriginalKey(p *storage.Picture) string {
	return fmt.Sprintf("media/%d%s", p.ID, ExtByMime(p.MimeType))
}

// ThumbKey is the blob key for a generated variant.
func ThumbKey(id int64, size int) string {
	return fmt.Sprintf("thumbs/%d_%d.webp", id, size)
}

// ExtByMime maps a supported mime type to its canonical file extension.
func ExtByMime(mimeType string) string {
	if ext, ok := supportedExtensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}
