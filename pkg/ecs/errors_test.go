package ecs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAPIErrorSuppressesRepeatedDetails(t *testing.T) {
	err := newAPIError(400, []byte(`{"code":1005,"description":"Bucket b1 already exists","details":"Bucket b1 already exists","retryable":false}`))

	assert.Equal(t, 1005, err.Code)
	assert.Equal(t, "status 400, code 1005: Bucket b1 already exists", err.Error())
}

func TestAPIErrorKeepsDistinctDetails(t *testing.T) {
	err := newAPIError(400, []byte(`{"code":1004,"description":"Error creating retention class","details":"gold already exists"}`))

	assert.Equal(t, "status 400, code 1004: Error creating retention class (gold already exists)", err.Error())
}

func TestAPIErrorUnstructuredBody(t *testing.T) {
	assert.Equal(t, "status 502: <html>Bad Gateway</html>", newAPIError(502, []byte("<html>Bad Gateway</html>\n")).Error())
	assert.Equal(t, "status 500", newAPIError(500, nil).Error())
	assert.Equal(t, `status 404: {"code":7}`, newAPIError(404, []byte(`{"code":7}`)).Error())
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(errors.Wrap(ErrAuthentication, "login rejected")))
	assert.False(t, IsAuthError(ErrNotAuthenticated))
	assert.False(t, IsAuthError(nil))
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "ecs.example.com:4443", NormalizeHost("https://ecs.example.com:4443"))
	assert.Equal(t, "ecs.example.com:4443", NormalizeHost("HTTPS://ecs.example.com:4443/"))
	assert.Equal(t, "10.0.0.1:4443", NormalizeHost(" 10.0.0.1:4443 "))
	assert.Equal(t, "https://", Config{Host: ""}.BaseURL())
	assert.Equal(t, "https://ecs:4443", Config{Host: "Https://ecs:4443"}.BaseURL())
}
