// Package proofs stores proof-of-payment receipts in a blob store.
package proofs

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the suggested lifetime of a stored proof.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultMaxUploadBytes limits the size of a single proof.
	DefaultMaxUploadBytes int64 = 8 << 20

	fallbackName = "file"
	keyPrefix    = "proofs"
	octetStream  = "application/octet-stream"
	svgType      = "image/svg+xml"
)

// DefaultAllowedTypes lists the accepted media types. A trailing "/*"
// matches a whole top-level type except image/svg+xml.
var DefaultAllowedTypes = []string{"image/*", "application/pdf"}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// BlobStore writes objects under a key and returns their public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Config holds gateway settings.
type Config struct {
	TTL            time.Duration
	MaxUploadBytes int64
	AllowedTypes   []string
}

// StoredProof describes an uploaded proof. ExpiresAt is a hint for an
// external cleanup job; nothing here deletes the object.
type StoredProof struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Gateway uploads proofs under deterministic keys.
type Gateway struct {
	store  BlobStore
	config Config
	now    func() time.Time
}

// NewGateway creates a gateway. A nil store yields a gateway that reports
// ErrNotConfigured on every call.
func NewGateway(store BlobStore, config Config) *Gateway {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(config.AllowedTypes) == 0 {
		config.AllowedTypes = DefaultAllowedTypes
	}
	return &Gateway{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// Configured reports whether a blob store is available.
func (g *Gateway) Configured() bool {
	return g.store != nil
}

// MaxUploadBytes returns the configured size limit.
func (g *Gateway) MaxUploadBytes() int64 {
	return g.config.MaxUploadBytes
}

// Store uploads data as a proof for recordID owned by ownerID.
func (g *Gateway) Store(ctx context.Context, ownerID, recordID string, data []byte, fileName, contentType string) (*StoredProof, error) {
	if g.store == nil {
		recordUpload("not_configured", 0)
		return nil, ErrNotConfigured
	}
	if len(data) == 0 {
		recordUpload("rejected", 0)
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > g.config.MaxUploadBytes {
		recordUpload("rejected", 0)
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), g.config.MaxUploadBytes)
	}

	mediaType := resolveContentType(data, contentType)
	if !g.allowed(mediaType) {
		recordUpload("rejected", 0)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}

	created := g.now().UTC()
	key := BuildKey(ownerID, recordID, created, fileName)

	url, err := g.store.Put(ctx, key, data, mediaType)
	if err != nil {
		recordUpload("failed", 0)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	recordUpload("stored", len(data))
	slog.Info("proof stored",
		"key", key,
		"content_type", mediaType,
		"size", len(data),
	)

	return &StoredProof{
		URL:         url,
		Key:         key,
		ContentType: mediaType,
		Size:        len(data),
		ExpiresAt:   created.Add(g.config.TTL),
	}, nil
}

func (g *Gateway) allowed(mediaType string) bool {
	for _, t := range g.config.AllowedTypes {
		if prefix, ok := strings.CutSuffix(t, "/*"); ok {
			if strings.HasPrefix(mediaType, prefix+"/") && mediaType != svgType {
				return true
			}
			continue
		}
		if mediaType == t {
			return true
		}
	}
	return false
}

// BuildKey derives the storage key proofs/<owner>/<record>/<millis>-<name>.
func BuildKey(ownerID, recordID string, created time.Time, fileName string) string {
	return strings.Join([]string{
		keyPrefix,
		SanitizeName(ownerID),
		SanitizeName(recordID),
		strconv.FormatInt(created.UnixMilli(), 10) + "-" + SanitizeName(fileName),
	}, "/")
}

// SanitizeName replaces every character outside [A-Za-z0-9_.-] with '_'
// and drops leading dots.
func SanitizeName(name string) string {
	clean := unsafeKeyChars.ReplaceAllString(name, "_")
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return fallbackName
	}
	return clean
}

// resolveContentType returns the sniffed media type. The declared type is
// used only when sniffing finds nothing more specific than octet-stream.
func resolveContentType(data []byte, declared string) string {
	sniffed, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		sniffed = octetStream
	}
	if sniffed != octetStream {
		return sniffed
	}

	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		return mediaType
	}
	return octetStream
}
