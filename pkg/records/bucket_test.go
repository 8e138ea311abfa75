package records_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/serverlessresearch/ecsmig/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBucketLine(t *testing.T) {
	rec, ok := records.ParseBucketLine("b1", "ns1")
	require.True(t, ok)
	assert.Equal(t, records.BucketRecord{Name: "b1", Namespace: "ns1"}, rec)

	rec, ok = records.ParseBucketLine("b2 ns2", "ns1")
	require.True(t, ok)
	assert.Equal(t, records.BucketRecord{Name: "b2", Namespace: "ns2"}, rec)

	rec, ok = records.ParseBucketLine("b3 ns3 alice", "ns1")
	require.True(t, ok)
	assert.Equal(t, records.BucketRecord{Name: "b3", Namespace: "ns3", Owner: "alice"}, rec)

	_, ok = records.ParseBucketLine("b4 ns4 bob extra", "ns1")
	assert.False(t, ok)

	_, ok = records.ParseBucketLine("", "ns1")
	assert.False(t, ok)
}

func TestReadBucketFile(t *testing.T) {
	recs, err := records.ReadBucketFile(filepath.Join(inputDir, "buckets.txt"), "ns1")
	require.NoError(t, err)

	assert.Equal(t, []records.BucketRecord{
		{Name: "b1", Namespace: "ns1"},
		{Name: "b2", Namespace: "ns2"},
		{Name: "b3", Namespace: "ns3", Owner: "alice"},
		{Name: "b5", Namespace: "ns1"},
	}, recs)
}

func TestReadBucketFileMissing(t *testing.T) {
	recs, err := records.ReadBucketFile(filepath.Join(inputDir, "nope"), "ns1")
	assert.Error(t, err)
	assert.Empty(t, recs)
}

func TestParseBucketKeepsOrder(t *testing.T) {
	recs, err := records.ParseBucket(strings.NewReader("z\na\nm\n"), "ns")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "z", recs[0].Name)
	assert.Equal(t, "a", recs[1].Name)
	assert.Equal(t, "m", recs[2].Name)
}
