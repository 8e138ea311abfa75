// Package ecs talks to the management REST API of a Dell EMC ECS system.
//
// A Client holds one authenticated session. Login must succeed before any
// other call is made; the token is never refreshed. All calls are blocking
// and a Client is not meant to be shared between goroutines.
package ecs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Header carrying the session token in both directions.
const AuthTokenHeader = "X-SDS-AUTH-TOKEN"

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	cfg  Config
	http Doer
	log  logrus.FieldLogger
	// Test run output
	out io.Writer

	token            string
	replicationGroup string
}

type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithOutput sets where test run requests are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Client) { c.out = w }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if NormalizeHost(cfg.Host) == "" {
		return nil, errors.New("no ECS host configured")
	}

	c := &Client{
		cfg:              cfg,
		out:              os.Stdout,
		replicationGroup: cfg.ReplicationGroup,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
			},
		}
	}
	return c, nil
}

// Authenticated reports whether Login has succeeded.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// Login acquires the session token with basic auth. Every failure wraps
// ErrAuthentication.
func (c *Client) Login(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/login", nil)
	if err != nil {
		return errors.Wrap(ErrAuthentication, err.Error())
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(ErrAuthentication, "login request to %s failed: %v", c.cfg.BaseURL(), err)
	}
	body, err := readBody(resp)
	if err != nil {
		return errors.Wrapf(ErrAuthentication, "Failed to read login response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrAuthentication, "login rejected: %v", newAPIError(resp.StatusCode, body))
	}

	token := resp.Header.Get(AuthTokenHeader)
	if token == "" {
		return errors.Wrapf(ErrAuthentication, "login response carries no %s header", AuthTokenHeader)
	}
	c.token = token
	c.log.WithField("user", c.cfg.Username).Debug("acquired session token")
	return nil
}

// Logout ends the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	if !c.Authenticated() {
		return nil
	}
	if err := c.call(ctx, http.MethodGet, "/logout", nil, nil); err != nil {
		return errors.Wrap(err, "Logout failed")
	}
	c.token = ""
	return nil
}

type vpoolList struct {
	Pools []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data_service_vpool"`
}

// ReplicationGroup returns the configured replication group, or the first
// one the system lists. A looked-up value is cached for the life of the
// Client.
func (c *Client) ReplicationGroup(ctx context.Context) (string, error) {
	if c.replicationGroup != "" {
		return c.replicationGroup, nil
	}

	var pools vpoolList
	if err := c.call(ctx, http.MethodGet, "/vdc/data-service/vpools", nil, &pools); err != nil {
		return "", errors.Wrap(err, "Failed to list replication groups")
	}
	if len(pools.Pools) == 0 || pools.Pools[0].Name == "" {
		return "", errors.New("system reports no replication groups")
	}

	c.replicationGroup = pools.Pools[0].Name
	c.log.WithField("replicationGroup", c.replicationGroup).Debug("resolved default replication group")
	return c.replicationGroup, nil
}

type retentionClassRequest struct {
	Name   string `json:"name"`
	Period int64  `json:"period"`
}

// CreateRetentionClass creates a retention class with a period in seconds
// in the configured namespace.
func (c *Client) CreateRetentionClass(ctx context.Context, name string, period int64) error {
	path := "/object/namespaces/namespace/" + url.PathEscape(c.cfg.Namespace) + "/retention"
	return c.create(ctx, path, retentionClassRequest{Name: name, Period: period})
}

type bucketRequest struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Owner     string `json:"owner,omitempty"`
	VPool     string `json:"vpool,omitempty"`
}

// CreateBucket creates a bucket. owner and replicationGroup may be empty to
// leave the choice to the system.
func (c *Client) CreateBucket(ctx context.Context, name, namespace, owner, replicationGroup string) error {
	return c.create(ctx, "/object/bucket", bucketRequest{
		Name:      name,
		Namespace: namespace,
		Owner:     owner,
		VPool:     replicationGroup,
	})
}

// Sends a create POST, or prints it during a test run.
func (c *Client) create(ctx context.Context, path string, payload interface{}) error {
	if c.cfg.TestRun {
		body, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "Failed to encode request")
		}
		fmt.Fprintf(c.out, "POST %s%s %s\n", c.cfg.BaseURL(), path, body)
		return nil
	}
	return c.call(ctx, http.MethodPost, path, payload, nil)
}

// Performs one authenticated request. A non-200 answer is an *APIError.
// When out is not nil the response body is decoded into it.
func (c *Client) call(ctx context.Context, method, path string, payload, out interface{}) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "Failed to encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set(AuthTokenHeader, c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	respBody, err := readBody(resp)
	c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("api call")
	if err != nil {
		return errors.Wrapf(err, "Failed to read response of %s %s", method, path)
	}

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrapf(err, "Failed to decode response of %s %s", method, path)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL()+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to build request %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return ioutil.ReadAll(resp.Body)
}
