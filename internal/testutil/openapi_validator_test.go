package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOpenAPIValidator(t *testing.T) {
	v, err := LoadOpenAPIValidator()
	require.NoError(t, err)
	require.NotNil(t, v.doc)

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body: io.NopCloser(strings.NewReader(
			`{"version":"dev","commit":"abc","build_date":"today","go_version":"go1.25.0"}`,
		)),
	}

	v.ValidateResponse(t, req, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"version":"dev"`)
}

func TestShouldSkipValidation(t *testing.T) {
	v := NewOpenAPIValidator(t)

	assert.True(t, v.shouldSkipValidation(httptest.NewRequest(http.MethodGet, "/healthz", nil)))

	upload := httptest.NewRequest(http.MethodPost, "/api/v1/goals/x/proof", nil)
	upload.Header.Set("Content-Type", "multipart/form-data; boundary=abc")
	assert.True(t, v.shouldSkipValidation(upload))

	assert.False(t, v.shouldSkipValidation(httptest.NewRequest(http.MethodGet, "/api/v1/members", nil)))
}

func TestRandomEmail(t *testing.T) {
	a, b := RandomEmail("m"), RandomEmail("m")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "m-"))
	assert.True(t, strings.HasSuffix(a, "@guild.test"))
}
