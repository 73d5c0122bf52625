package namespace

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "websearch/internal/errors"
)

func TestResolvePrecedence(t *testing.T) {
	res := NewResolver("configured")

	req := httptest.NewRequest("POST", "/api/v1/cache", nil)
	req.Header.Set(Header, "from-header")

	ns, err := res.Resolve("explicit", req)
	require.NoError(t, err)
	assert.Equal(t, "explicit", ns)

	ns, err = res.Resolve("", req)
	require.NoError(t, err)
	assert.Equal(t, "from-header", ns)

	ns, err = res.Resolve("", httptest.NewRequest("POST", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "configured", ns)

	ns, err = NewResolver("").Resolve("", nil)
	require.NoError(t, err)
	assert.Equal(t, Fallback, ns)
}

func TestValidate(t *testing.T) {
	for _, ok := range []string{"default", "my-project", "team.docs_v2", "A1"} {
		assert.NoError(t, Validate(ok), ok)
	}
	for _, bad := range []string{"", "has space", "slash/y", "..", ".", "über", string(make([]byte, 65))} {
		err := Validate(bad)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput), bad)
	}
}
