package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"strayland/internal/models"
	"strayland/internal/observability"
	"strayland/internal/storage"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxUploadBytes = 10 << 20
	ThumbnailMaxSize      = 480
	WebPQuality           = 70
	maxSafeNameLength     = 64
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadImageInput is a raw image attached to a new post.
type UploadImageInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// StoredImage locates the original and its thumbnail in the object store.
type StoredImage struct {
	URL          string
	Key          string
	ThumbnailURL string
	ThumbnailKey string
}

// ImageService validates post images and writes them with a webp thumbnail.
type ImageService struct {
	store    storage.ObjectStore
	maxBytes int64
	now      func() time.Time
}

func NewImageService(store storage.ObjectStore, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImageService{store: store, maxBytes: maxBytes, now: time.Now}
}

// MaxBytes is the upload size limit.
func (s *ImageService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *ImageService) Upload(ctx context.Context, in UploadImageInput) (stored *StoredImage, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "rejected"
			if models.HasCode(err, models.CodeUpstream) {
				result = "error"
			}
		}
		observability.ImageUploads.WithLabelValues(result).Inc()
	}()

	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return nil, models.NewPayloadTooLargeError(s.maxBytes)
	}

	detectedType := normalizeContentType(http.DetectContentType(in.Content))
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if decodedFormatToMime(format) != detectedType {
		return nil, models.NewValidationError("Image content type mismatch")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detectedType) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	thumb, err := encodeWebP(resizeToFit(decoded, ThumbnailMaxSize, ThumbnailMaxSize), WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	prefix := fmt.Sprintf("%d_%s", s.now().Unix(), uuid.NewString())
	name := safeFilename(in.Filename)
	stored = &StoredImage{
		Key:          "images/" + prefix + "_" + name,
		ThumbnailKey: "thumbnails/" + prefix + "_" + strings.TrimSuffix(name, filepath.Ext(name)) + ".webp",
	}

	if stored.URL, err = s.store.Put(ctx, stored.Key, in.Content, detectedType); err != nil {
		return nil, models.NewUpstreamError("object storage", err)
	}
	if stored.ThumbnailURL, err = s.store.Put(ctx, stored.ThumbnailKey, thumb, "image/webp"); err != nil {
		s.Remove(ctx, &StoredImage{Key: stored.Key})
		return nil, models.NewUpstreamError("object storage", err)
	}
	return stored, nil
}

// Remove deletes both objects, logging failures instead of returning them.
func (s *ImageService) Remove(ctx context.Context, img *StoredImage) {
	if s == nil || img == nil {
		return
	}
	for _, key := range []string{img.Key, img.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to remove image object",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// safeFilename keeps a short, URL-safe version of the client's file name.
func safeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Trim(unsafeNameChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "upload"
	}
	if len(base) > maxSafeNameLength {
		base = base[len(base)-maxSafeNameLength:]
	}
	return base
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	if provided == "image/jpg" {
		provided = "image/jpeg"
	}
	return provided == detected
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
