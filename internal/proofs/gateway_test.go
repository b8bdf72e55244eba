package proofs

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// mockStore implements BlobStore for testing.
type mockStore struct {
	err         error
	key         string
	data        []byte
	contentType string
}

func (m *mockStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.key = key
	m.data = data
	m.contentType = contentType
	return "https://blob.example/" + key, nil
}

func fixedGateway(store BlobStore, config Config, now time.Time) *Gateway {
	g := NewGateway(store, config)
	g.now = func() time.Time { return now }
	return g
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"recibo.png", "recibo.png"},
		{"rel tório (1).png", "rel_t_rio__1_.png"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{".hidden", "hidden"},
		{"...", "file"},
		{"", "file"},
		{"a/b\\c", "a_b_c"},
		{"ok_name-1.PDF", "ok_name-1.PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestBuildKey_OnlySafeCharacters(t *testing.T) {
	created := time.UnixMilli(1760700000123)
	key := BuildKey("user 1", "goal/2", created, "rel tório (1).png")

	assert.Equal(t, "proofs/user_1/goal_2/1760700000123-rel_t_rio__1_.png", key)

	for _, segment := range strings.Split(key, "/") {
		assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_.-]+$`), segment)
	}
}

func TestGateway_Store(t *testing.T) {
	store := &mockStore{}
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	g := fixedGateway(store, Config{}, now)

	proof, err := g.Store(context.Background(), "u-1", "g-1", pngHeader, "rel tório (1).png", "image/png")

	require.NoError(t, err)
	expectedKey := "proofs/u-1/g-1/" + "1792229400000" + "-rel_t_rio__1_.png"
	assert.Equal(t, expectedKey, proof.Key)
	assert.Equal(t, "https://blob.example/"+expectedKey, proof.URL)
	assert.Equal(t, now.Add(7*24*time.Hour), proof.ExpiresAt)
	assert.Equal(t, "image/png", proof.ContentType)
	assert.Equal(t, len(pngHeader), proof.Size)
	assert.Equal(t, expectedKey, store.key)
	assert.Equal(t, pngHeader, store.data)
}

func TestGateway_Store_CustomTTL(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	g := fixedGateway(&mockStore{}, Config{TTL: 48 * time.Hour}, now)

	proof, err := g.Store(context.Background(), "u-1", "g-1", pngHeader, "a.png", "image/png")

	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), proof.ExpiresAt)
}

func TestGateway_Store_NotConfigured(t *testing.T) {
	g := NewGateway(nil, Config{})

	assert.False(t, g.Configured())
	_, err := g.Store(context.Background(), "u-1", "g-1", pngHeader, "a.png", "image/png")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGateway_Store_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		wantErr     error
	}{
		{"empty", nil, "image/png", ErrEmptyFile},
		{"too large", make([]byte, 11), "image/png", ErrTooLarge},
		{"declared type not allowed", []byte("hello"), "text/plain", ErrUnsupportedType},
		{"sniffed type not allowed", []byte("plain words"), "", ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			g := NewGateway(store, Config{MaxUploadBytes: 10})

			_, err := g.Store(context.Background(), "u-1", "g-1", tt.data, "a.bin", tt.contentType)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.key)
		})
	}
}

func TestGateway_Store_SniffsContentType(t *testing.T) {
	store := &mockStore{}
	g := NewGateway(store, Config{})

	proof, err := g.Store(context.Background(), "u-1", "g-1", pngHeader, "a.png", "application/octet-stream")

	require.NoError(t, err)
	assert.Equal(t, "image/png", proof.ContentType)
	assert.Equal(t, "image/png", store.contentType)
}

func TestGateway_Store_SniffedTypeWins(t *testing.T) {
	html := []byte("<!DOCTYPE html><html><script>alert(1)</script></html>")
	svg := []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)

	tests := []struct {
		name     string
		data     []byte
		declared string
		wantType string
		wantErr  error
	}{
		{name: "html labelled png", data: html, declared: "image/png", wantErr: ErrUnsupportedType},
		{name: "svg labelled png", data: svg, declared: "image/png", wantErr: ErrUnsupportedType},
		{name: "svg declared as svg", data: svg, declared: "image/svg+xml", wantErr: ErrUnsupportedType},
		{name: "png labelled pdf", data: pngHeader, declared: "application/pdf", wantType: "image/png"},
		{name: "unknown bytes keep declared type", data: []byte{0x00, 0x01, 0x02, 0xfe}, declared: "image/heic", wantType: "image/heic"},
		{name: "unknown bytes without declared type", data: []byte{0x00, 0x01, 0x02, 0xfe}, wantErr: ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			g := NewGateway(store, Config{})

			proof, err := g.Store(context.Background(), "u-1", "g-1", tt.data, "a.png", tt.declared)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, store.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, proof.ContentType)
			assert.Equal(t, tt.wantType, store.contentType)
		})
	}
}

func TestGateway_Allowed_WildcardSkipsSVG(t *testing.T) {
	g := NewGateway(&mockStore{}, Config{})

	assert.True(t, g.allowed("image/png"))
	assert.True(t, g.allowed("image/webp"))
	assert.False(t, g.allowed("image/svg+xml"))
	assert.False(t, g.allowed("text/html"))
}

func TestGateway_Store_AcceptsPDFWithParams(t *testing.T) {
	g := NewGateway(&mockStore{}, Config{})

	proof, err := g.Store(context.Background(), "u-1", "g-1", []byte("%PDF-1.7"), "a.pdf", "application/pdf; charset=binary")

	require.NoError(t, err)
	assert.Equal(t, "application/pdf", proof.ContentType)
}

func TestGateway_Store_BlobFailure(t *testing.T) {
	g := NewGateway(&mockStore{err: errors.New("503 from store")}, Config{})

	proof, err := g.Store(context.Background(), "u-1", "g-1", pngHeader, "a.png", "image/png")

	assert.Nil(t, proof)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Contains(t, err.Error(), "503 from store")
}
