package migrate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/ecsmig/pkg/ecs"
	"github.com/stretchr/testify/assert"
)

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("rc")
	assert.NoError(t, err)
	assert.Equal(t, OpRetentionClass, op)

	op, err = ParseOperation("retentionclass")
	assert.NoError(t, err)
	assert.Equal(t, OpRetentionClass, op)

	op, err = ParseOperation("buckets")
	assert.NoError(t, err)
	assert.Equal(t, OpBuckets, op)

	_, err = ParseOperation("users")
	assert.Equal(t, ErrUnknownOperation, errors.Cause(err))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{
		ECS: ecs.Config{
			Host:      "ecs:4443",
			Username:  "root",
			Password:  "ChangeMe",
			Namespace: "ns1",
		},
		Operation: "rc",
		Filename:  "rc.txt",
	}
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.ECS.Host = "https://"
	bad.ECS.Password = ""
	err := bad.Validate()
	assert.EqualError(t, err, "missing required setting(s): hostname, password")

	bad = cfg
	bad.Operation = "users"
	assert.Error(t, bad.Validate())
}
