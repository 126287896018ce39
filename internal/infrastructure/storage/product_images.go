package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// ObjectStore is the subset of object storage the image uploader needs.
type ObjectStore interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
	PublicURL(storageKey string) string
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ProductImageUploader implements productsync.MediaUploader. It stores the
// largest image payload of a product under a content-addressed key, so an
// unchanged image is uploaded once and keeps its URL across runs.
type ProductImageUploader struct {
	store     ObjectStore
	keyPrefix string
	logger    *zap.Logger
}

// NewProductImageUploader creates an uploader writing below keyPrefix.
func NewProductImageUploader(store ObjectStore, keyPrefix string, logger *zap.Logger) *ProductImageUploader {
	return &ProductImageUploader{
		store:     store,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		logger:    logger.Named("media"),
	}
}

var _ productsync.MediaUploader = (*ProductImageUploader)(nil)

// UploadProductImages returns the public URLs of the product's images; an
// empty slice when the product has none.
func (u *ProductImageUploader) UploadProductImages(ctx context.Context, product productsync.ExternalProduct) ([]string, error) {
	payload := product.Images.Largest()
	if payload == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: product %d: decode image: %w", productsync.ErrMedia, product.ID, err)
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: product %d: unsupported image type %s", productsync.ErrMedia, product.ID, contentType)
	}

	key := u.key(product.ID, data, ext)
	exists, err := u.store.ObjectExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: product %d: %w", productsync.ErrMedia, product.ID, err)
	}
	if !exists {
		if err := u.store.Upload(ctx, key, data, contentType); err != nil {
			return nil, fmt.Errorf("%w: product %d: %w", productsync.ErrMedia, product.ID, err)
		}
		logger.L(ctx, u.logger).Debug("product image uploaded",
			zap.Int64("product_id", product.ID),
			zap.String("key", key),
			zap.Int("bytes", len(data)),
		)
	}
	return []string{u.store.PublicURL(key)}, nil
}

func (u *ProductImageUploader) key(productID int64, data []byte, ext string) string {
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:8]) + ext
	return path.Join(u.keyPrefix, "products", strconv.FormatInt(productID, 10), name)
}
