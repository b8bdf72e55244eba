package openapi

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecIsValid(t *testing.T) {
	doc, err := openapi3.NewLoader().LoadFromData(Spec)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{
		"/api/v1/auth/login",
		"/api/v1/members",
		"/api/v1/members/{id}/goals",
		"/api/v1/actions/{id}",
		"/api/v1/goals/{id}/proof",
		"/api/v1/sales",
		"/api/v1/notify/general",
		"/api/v1/notify/personal",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
}
