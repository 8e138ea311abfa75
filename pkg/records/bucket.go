package records

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

// BucketRecord is one bucket to create.
type BucketRecord struct {
	Name      string
	Namespace string
	// Empty when the line does not name an owner
	Owner string
}

// ParseBucketLine builds a record from a line of one to three tokens:
// "name", "name namespace" or "name namespace owner". defaultNamespace is
// used when the line has only a name. Any other token count gives ok=false.
func ParseBucketLine(line, defaultNamespace string) (rec BucketRecord, ok bool) {
	tokens := strings.Fields(line)
	switch len(tokens) {
	case 1:
		return BucketRecord{Name: tokens[0], Namespace: defaultNamespace}, true
	case 2:
		return BucketRecord{Name: tokens[0], Namespace: tokens[1]}, true
	case 3:
		return BucketRecord{Name: tokens[0], Namespace: tokens[1], Owner: tokens[2]}, true
	default:
		return BucketRecord{}, false
	}
}

// ParseBucket reads bucket records from r in line order.
func ParseBucket(r io.Reader, defaultNamespace string) ([]BucketRecord, error) {
	var recs []BucketRecord
	err := scanLines(r, func(lineNo int, line string) {
		rec, ok := ParseBucketLine(line, defaultNamespace)
		if !ok {
			logSkipped(lineNo, line)
			return
		}
		recs = append(recs, rec)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read bucket records")
	}
	return recs, nil
}

// ReadBucketFile parses the bucket file at path. On any open or read failure
// it returns no records and the error.
func ReadBucketFile(path, defaultNamespace string) ([]BucketRecord, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseBucket(f, defaultNamespace)
}
