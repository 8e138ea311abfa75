// Package migrate runs one import of retention classes or buckets into an
// ECS system.
//
// A run logs in once, reads the input file and then issues one create call
// per record, strictly in file order. Only a failed login (and, for buckets,
// a failed replication group lookup) stops a run. Every other failure is
// reported for its record and the run moves on to the next one.
package migrate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/serverlessresearch/ecsmig/pkg/ecs"
	"github.com/serverlessresearch/ecsmig/pkg/records"
	"github.com/serverlessresearch/ecsmig/pkg/s3verify"
	"github.com/sirupsen/logrus"
)

// BucketVerifier checks a bucket after it was created.
type BucketVerifier interface {
	VerifyBucket(ctx context.Context, bucket string) error
}

// Result counts what a run did.
type Result struct {
	// Records parsed from the input file
	Records   int
	Succeeded int
	Failed    int
	// Buckets created but not reachable through S3
	Unverified int
}

type Migrator struct {
	cfg      Config
	client   *ecs.Client
	verifier BucketVerifier
	log      logrus.FieldLogger
	out      io.Writer

	httpClient ecs.Doer
}

type Option func(*Migrator)

// WithLogger sets the log destination. Defaults to a logrus logger on stderr.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Migrator) { m.log = l }
}

// WithOutput sets where status lines are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Migrator) { m.out = w }
}

// WithHTTPClient replaces the transport used for the management API.
func WithHTTPClient(d ecs.Doer) Option {
	return func(m *Migrator) { m.httpClient = d }
}

// WithVerifier replaces the verifier built from Config.Verify.
func WithVerifier(v BucketVerifier) Option {
	return func(m *Migrator) { m.verifier = v }
}

func New(cfg Config, opts ...Option) (*Migrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Operation, _ = ParseOperation(string(cfg.Operation))

	m := &Migrator{cfg: cfg, out: os.Stdout}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.New()
	}
	m.log = m.log.WithField("run", uuid.New().String())

	clientOpts := []ecs.Option{
		ecs.WithLogger(m.log.WithField("module", "ecs")),
		ecs.WithOutput(m.out),
	}
	if m.httpClient != nil {
		clientOpts = append(clientOpts, ecs.WithHTTPClient(m.httpClient))
	}
	client, err := ecs.NewClient(cfg.ECS, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to initialize ECS client")
	}
	m.client = client

	if m.verifier == nil && cfg.Operation == OpBuckets && cfg.Verify.Enabled() {
		v, err := s3verify.New(*cfg.Verify)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to initialize S3 verification")
		}
		m.verifier = v
	}
	return m, nil
}

// Run performs the migration. The returned error is only set for failures
// that stop the whole run, in which case no record was attempted.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	log := m.log.WithField("operation", m.cfg.Operation)
	log.Info("Started")
	m.logConfig()

	fmt.Fprintln(m.out, "Start ...")
	if m.cfg.ECS.TestRun {
		fmt.Fprintln(m.out, "TESTRUN")
	}

	if err := m.client.Login(ctx); err != nil {
		m.printf("Not able to get token: %v", err)
		log.WithError(err).Error("Not able to get token")
		return Result{}, err
	}
	defer func() {
		if err := m.client.Logout(ctx); err != nil {
			log.WithError(err).Warn("Logout failed")
		}
	}()

	var res Result
	var err error
	switch m.cfg.Operation {
	case OpRetentionClass:
		res = m.migrateRetentionClasses(ctx)
	case OpBuckets:
		res, err = m.migrateBuckets(ctx)
	}
	if err != nil {
		return res, err
	}

	log.WithFields(logrus.Fields{
		"records":    res.Records,
		"succeeded":  res.Succeeded,
		"failed":     res.Failed,
		"unverified": res.Unverified,
	}).Info("Finished")
	return res, nil
}

func (m *Migrator) migrateRetentionClasses(ctx context.Context) Result {
	recs, err := records.ReadRetentionFile(m.cfg.Filename)
	if err != nil {
		m.log.WithError(err).WithField("file", m.cfg.Filename).Warn("No retention classes read, nothing to do")
		return Result{}
	}

	res := Result{Records: len(recs)}
	for _, rc := range recs {
		fields := logrus.Fields{"name": rc.Name, "period": rc.Period}
		if err := m.client.CreateRetentionClass(ctx, rc.Name, rc.Period); err != nil {
			res.Failed++
			m.failure(err, fields, "FAILED: Retention class %s could not be created.", rc.Name)
			continue
		}
		res.Succeeded++
		if m.cfg.ECS.TestRun {
			m.log.WithFields(fields).Info("test run, request not sent")
			continue
		}
		m.success(fields, "SUCCESS: Retention class %s with period %d successfully created.", rc.Name, rc.Period)
	}
	return res
}

func (m *Migrator) migrateBuckets(ctx context.Context) (Result, error) {
	recs, err := records.ReadBucketFile(m.cfg.Filename, m.cfg.ECS.Namespace)
	if err != nil {
		m.log.WithError(err).WithField("file", m.cfg.Filename).Warn("No buckets read, nothing to do")
		return Result{}, nil
	}
	if len(recs) == 0 {
		return Result{}, nil
	}

	// Resolved before the first bucket so that no bucket ends up without one
	rg, err := m.client.ReplicationGroup(ctx)
	if err != nil {
		m.printf("Not able to determine replication group: %v", err)
		m.log.WithError(err).Error("Not able to determine replication group")
		return Result{}, err
	}

	res := Result{Records: len(recs)}
	for _, b := range recs {
		fields := logrus.Fields{"name": b.Name, "namespace": b.Namespace, "owner": b.Owner, "replicationGroup": rg}
		if err := m.client.CreateBucket(ctx, b.Name, b.Namespace, b.Owner, rg); err != nil {
			res.Failed++
			m.failure(err, fields, "FAILED: Bucket %s in namespace %s could not be created.", b.Name, b.Namespace)
			continue
		}
		res.Succeeded++
		if m.cfg.ECS.TestRun {
			m.log.WithFields(fields).Info("test run, request not sent")
			continue
		}
		m.success(fields, "SUCCESS: Bucket %s in namespace %s successfully created.", b.Name, b.Namespace)

		if m.verifier != nil {
			if err := m.verifier.VerifyBucket(ctx, b.Name); err != nil {
				res.Unverified++
				m.printf("WARNING: Bucket %s is not reachable through S3: %v", b.Name, err)
				m.log.WithFields(fields).WithError(err).Warn("bucket not reachable through S3")
			}
		}
	}
	return res, nil
}

func (m *Migrator) logConfig() {
	m.log.WithFields(logrus.Fields{
		"hostname":         m.cfg.ECS.Host,
		"user":             m.cfg.ECS.Username,
		"password":         "********",
		"namespace":        m.cfg.ECS.Namespace,
		"replicationGroup": m.cfg.ECS.ReplicationGroup,
		"filename":         m.cfg.Filename,
		"testrun":          m.cfg.ECS.TestRun,
	}).Debug("configuration")
}

func (m *Migrator) printf(format string, args ...interface{}) {
	fmt.Fprintf(m.out, format+"\n", args...)
}

func (m *Migrator) success(fields logrus.Fields, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(m.out, msg)
	m.log.WithFields(fields).Info(msg)
}

func (m *Migrator) failure(err error, fields logrus.Fields, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(m.out, msg)
	fmt.Fprintln(m.out, " --> "+err.Error())
	m.log.WithFields(fields).WithError(err).Error(msg)
}
