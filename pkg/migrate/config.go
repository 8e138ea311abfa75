package migrate

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/ecsmig/pkg/ecs"
	"github.com/serverlessresearch/ecsmig/pkg/s3verify"
)

// Operation selects what the input file describes.
type Operation string

const (
	OpRetentionClass Operation = "rc"
	OpBuckets        Operation = "buckets"
)

// ErrUnknownOperation is returned for operation names ParseOperation rejects.
var ErrUnknownOperation = errors.New("unknown operation")

// OperationNames lists the accepted spellings, for help output.
var OperationNames = []string{"rc", "buckets", "retentionclass"}

// ParseOperation accepts "rc", "buckets" and the older "retentionclass".
func ParseOperation(s string) (Operation, error) {
	switch strings.TrimSpace(s) {
	case "rc", "retentionclass":
		return OpRetentionClass, nil
	case "buckets":
		return OpBuckets, nil
	default:
		return "", errors.Wrapf(ErrUnknownOperation, "%q (choose from %s)", s, strings.Join(OperationNames, ", "))
	}
}

// Config of one migration run. Built once at startup and passed by value.
type Config struct {
	ECS       ecs.Config
	Operation Operation
	// Input file
	Filename string
	// Optional S3 reachability check of created buckets
	Verify *s3verify.Config
}

// Validate checks that every required value is present.
func (c Config) Validate() error {
	var missing []string
	if ecs.NormalizeHost(c.ECS.Host) == "" {
		missing = append(missing, "hostname")
	}
	if c.ECS.Username == "" {
		missing = append(missing, "username")
	}
	if c.ECS.Password == "" {
		missing = append(missing, "password")
	}
	if c.ECS.Namespace == "" {
		missing = append(missing, "namespace")
	}
	if c.Filename == "" {
		missing = append(missing, "filename")
	}
	if c.Operation == "" {
		missing = append(missing, "operation")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required setting(s): %s", strings.Join(missing, ", "))
	}

	if _, err := ParseOperation(string(c.Operation)); err != nil {
		return err
	}
	return nil
}
