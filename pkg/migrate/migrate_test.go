package migrate_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/ecsmig/pkg/ecs"
	"github.com/serverlessresearch/ecsmig/pkg/ecstest"
	"github.com/serverlessresearch/ecsmig/pkg/migrate"
	"github.com/serverlessresearch/ecsmig/pkg/s3verify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(srv *ecstest.Server, op migrate.Operation, filename string) migrate.Config {
	return migrate.Config{
		ECS: ecs.Config{
			Host:      srv.Host(),
			Username:  "root",
			Password:  "ChangeMe",
			Namespace: "ns1",
			Insecure:  true,
		},
		Operation: op,
		Filename:  filename,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return l
}

func run(t *testing.T, cfg migrate.Config, opts ...migrate.Option) (migrate.Result, string, error) {
	out := &bytes.Buffer{}
	opts = append([]migrate.Option{migrate.WithOutput(out), migrate.WithLogger(quietLogger())}, opts...)
	m, err := migrate.New(cfg, opts...)
	require.NoError(t, err)
	res, err := m.Run(context.Background())
	return res, out.String(), err
}

func TestRetentionClasses(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	input := writeInput(t, "gold 2 years 3 month\nsilver\n\nbronze 1 day\n")
	res, out, err := run(t, testConfig(srv, migrate.OpRetentionClass, input))
	require.NoError(t, err)

	assert.Equal(t, migrate.Result{Records: 3, Succeeded: 3}, res)
	assert.Equal(t, map[string]int64{"gold": 70848000, "silver": 0, "bronze": 86400}, srv.RetentionClasses("ns1"))
	assert.Contains(t, out, "SUCCESS: Retention class gold with period 70848000 successfully created.\n")
	assert.Contains(t, out, "SUCCESS: Retention class silver with period 0 successfully created.\n")
}

func TestRetentionClassesRerunReportsDuplicates(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	input := writeInput(t, "gold 2 years\nsilver 1 day\n")
	cfg := testConfig(srv, migrate.OpRetentionClass, input)
	_, _, err := run(t, cfg)
	require.NoError(t, err)

	res, out, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, migrate.Result{Records: 2, Failed: 2}, res)
	assert.Contains(t, out, "FAILED: Retention class gold could not be created.\n --> status 400, code 1004")
	assert.Contains(t, out, "FAILED: Retention class silver could not be created.\n")
}

func TestOneFailureDoesNotStopTheRun(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()
	srv.AddBucket(ecstest.Bucket{Name: "taken", Namespace: "ns1"})

	input := writeInput(t, "first\ntaken\nlast\n")
	res, out, err := run(t, testConfig(srv, migrate.OpBuckets, input))
	require.NoError(t, err)

	assert.Equal(t, migrate.Result{Records: 3, Succeeded: 2, Failed: 1}, res)
	assert.Contains(t, out, "FAILED: Bucket taken in namespace ns1 could not be created.\n --> status 400, code 1005: Bucket taken already exists\n")
	assert.Contains(t, out, "SUCCESS: Bucket last in namespace ns1 successfully created.")
}

func TestLoginFailureStopsBeforeAnyCreate(t *testing.T) {
	srv := ecstest.NewServer(ecstest.WithCredentials("root", "other"))
	defer srv.Close()

	input := writeInput(t, "gold 2 years\n")
	res, out, err := run(t, testConfig(srv, migrate.OpRetentionClass, input))
	require.Error(t, err)
	assert.True(t, ecs.IsAuthError(err))
	assert.Equal(t, migrate.Result{}, res)
	assert.Contains(t, out, "Not able to get token")

	assert.Equal(t, []ecstest.Request{{Method: http.MethodGet, Path: "/login"}}, srv.Requests())
}

func TestTestRunNeverCreates(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	input := writeInput(t, "gold 2 years 3 month\nsilver\n")
	cfg := testConfig(srv, migrate.OpRetentionClass, input)
	cfg.ECS.TestRun = true

	res, out, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, migrate.Result{Records: 2, Succeeded: 2}, res)
	assert.Equal(t, 0, srv.CountRequests(http.MethodPost))
	assert.Empty(t, srv.RetentionClasses("ns1"))

	assert.True(t, strings.HasPrefix(out, "Start ...\nTESTRUN\n"))
	assert.Contains(t, out, "/object/namespaces/namespace/ns1/retention {\"name\":\"gold\",\"period\":70848000}\n")
	assert.NotContains(t, out, "SUCCESS")
}

func TestUnreadableFileProcessesNothing(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	missing := filepath.Join(t.TempDir(), "missing.txt")
	res, _, err := run(t, testConfig(srv, migrate.OpRetentionClass, missing))
	require.NoError(t, err)
	assert.Equal(t, migrate.Result{}, res)
	assert.Equal(t, 0, srv.CountRequests(http.MethodPost))

	res, _, err = run(t, testConfig(srv, migrate.OpBuckets, missing))
	require.NoError(t, err)
	assert.Equal(t, migrate.Result{}, res)
}

func TestBuckets(t *testing.T) {
	srv := ecstest.NewServer(ecstest.WithVPools("rg-default", "rg-other"))
	defer srv.Close()

	input := writeInput(t, "b1\nb2 ns2\nb3 ns3 alice\nb4 ns4 bob extra\n")
	res, out, err := run(t, testConfig(srv, migrate.OpBuckets, input))
	require.NoError(t, err)

	assert.Equal(t, migrate.Result{Records: 3, Succeeded: 3}, res)
	assert.Equal(t, []ecstest.Bucket{
		{Name: "b1", Namespace: "ns1", VPool: "rg-default"},
		{Name: "b2", Namespace: "ns2", VPool: "rg-default"},
		{Name: "b3", Namespace: "ns3", Owner: "alice", VPool: "rg-default"},
	}, srv.Buckets())
	assert.Contains(t, out, "SUCCESS: Bucket b2 in namespace ns2 successfully created.")
}

func TestBucketsExplicitReplicationGroup(t *testing.T) {
	srv := ecstest.NewServer(ecstest.WithVPools())
	defer srv.Close()

	cfg := testConfig(srv, migrate.OpBuckets, writeInput(t, "b1\n"))
	cfg.ECS.ReplicationGroup = "rg-mine"

	res, _, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, "rg-mine", srv.Buckets()[0].VPool)
}

func TestBucketsReplicationGroupFailureIsFatal(t *testing.T) {
	srv := ecstest.NewServer(ecstest.WithVPools())
	defer srv.Close()

	res, out, err := run(t, testConfig(srv, migrate.OpBuckets, writeInput(t, "b1\nb2\n")))
	require.Error(t, err)
	assert.Equal(t, migrate.Result{}, res)
	assert.Contains(t, out, "Not able to determine replication group")
	assert.Equal(t, 0, srv.CountRequests(http.MethodPost))
}

type fakeVerifier struct {
	unreachable map[string]bool
	checked     []string
}

func (f *fakeVerifier) VerifyBucket(ctx context.Context, bucket string) error {
	f.checked = append(f.checked, bucket)
	if f.unreachable[bucket] {
		return errors.New("403 Forbidden")
	}
	return nil
}

func TestBucketsVerification(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	v := &fakeVerifier{unreachable: map[string]bool{"b2": true}}
	res, out, err := run(t, testConfig(srv, migrate.OpBuckets, writeInput(t, "b1\nb2\n")), migrate.WithVerifier(v))
	require.NoError(t, err)

	assert.Equal(t, migrate.Result{Records: 2, Succeeded: 2, Unverified: 1}, res)
	assert.Equal(t, []string{"b1", "b2"}, v.checked)
	assert.Contains(t, out, "WARNING: Bucket b2 is not reachable through S3: 403 Forbidden")
}

func TestBucketsVerificationThroughS3(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	cfg := testConfig(srv, migrate.OpBuckets, writeInput(t, "b1\n"))
	cfg.Verify = &s3verify.Config{Endpoint: srv.S3.URL, AccessKey: "user1", SecretKey: "secret"}

	res, _, err := run(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, migrate.Result{Records: 1, Succeeded: 1}, res)
	assert.Equal(t, 1, srv.CountRequests(http.MethodHead))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := migrate.New(migrate.Config{})
	assert.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	srv := ecstest.NewServer()
	defer srv.Close()

	logPath := filepath.Join(t.TempDir(), "ecsmig.log")
	logger, closer, err := migrate.NewFileLogger(logPath, "info")
	require.NoError(t, err)

	m, err := migrate.New(testConfig(srv, migrate.OpRetentionClass, writeInput(t, "gold 1 year\n")),
		migrate.WithLogger(logger), migrate.WithOutput(ioutil.Discard))
	require.NoError(t, err)
	_, err = m.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	data, err := ioutil.ReadFile(logPath)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "msg=Started")
	assert.Contains(t, log, "SUCCESS: Retention class gold with period 31536000 successfully created.")
	assert.Contains(t, log, "msg=Finished")
	assert.NotContains(t, log, "ChangeMe")
	assert.Regexp(t, `time="\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}"`, log)
}

func TestFileLoggerBadLevel(t *testing.T) {
	_, _, err := migrate.NewFileLogger(filepath.Join(t.TempDir(), "x.log"), "loud")
	assert.Error(t, err)
}
