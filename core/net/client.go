// Package net provides the HTTP transport the wallet uses to talk to Horizon.
//
// Two independently tuned clients are used: a query client (connect 10s,
// read 30s) and a submission client (connect 10s, read 65s) because a
// submission blocks until the ledger closes. Both retry once when the
// connection itself could not be established, and never after a request may
// have reached the server.
//
// A Client implements horizonclient.HTTP, so the Horizon SDK runs over it:
//
//	query := net.NewHorizon(net.PublicHorizonURL, net.NewQueryClient())
//	submit := net.NewHorizon(net.PublicHorizonURL, net.NewSubmitClient())
package net

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	gonet "net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"

	"github.com/marwen-abid/stellar-wallet-go/errors"
)

// Horizon endpoints.
const (
	PublicHorizonURL = "https://horizon.stellar.org"
	TestHorizonURL   = "https://horizon-testnet.stellar.org"
)

// Default configuration values
const (
	defaultConnectTimeout    = 10 * time.Second
	defaultQueryReadTimeout  = 30 * time.Second
	defaultSubmitReadTimeout = 65 * time.Second
	defaultMaxRetries        = 1
	maxProblemBytes          = 1 << 20
	appName                  = "stellar-wallet-go"
)

type dialFunc func(ctx context.Context, network, addr string) (gonet.Conn, error)

// Client is an HTTP client with connect/read timeouts and retry on connection failure.
// It is safe for concurrent use once constructed.
type Client struct {
	httpClient     *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	maxRetries     int
	logger         *log.Entry
	dial           dialFunc
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithConnectTimeout sets the TCP connect timeout (default: 10s).
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithReadTimeout sets how long to wait for the response after the request is written.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithMaxRetries sets how many times a failed connection attempt is retried (default: 1).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *log.Entry) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		connectTimeout: defaultConnectTimeout,
		readTimeout:    defaultQueryReadTimeout,
		maxRetries:     defaultMaxRetries,
		logger:         log.NewEntry(log.StandardLogger()),
	}

	for _, opt := range opts {
		opt(client)
	}

	dial := client.dial
	if dial == nil {
		dial = (&gonet.Dialer{Timeout: client.connectTimeout}).DialContext
	}

	client.httpClient = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dial,
			TLSHandshakeTimeout:   client.connectTimeout,
			ResponseHeaderTimeout: client.readTimeout,
		},
		Timeout: client.connectTimeout + client.readTimeout,
	}

	return client
}

// NewQueryClient returns a client tuned for read queries.
func NewQueryClient(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithReadTimeout(defaultQueryReadTimeout)}, opts...)...)
}

// NewSubmitClient returns a client tuned for transaction submission.
func NewSubmitClient(opts ...ClientOption) *Client {
	return NewClient(append([]ClientOption{WithReadTimeout(defaultSubmitReadTimeout)}, opts...)...)
}

// ReadTimeout returns the configured read timeout.
func (c *Client) ReadTimeout() time.Duration {
	return c.readTimeout
}

// NewHorizon builds a Horizon SDK client that sends every request through c.
func NewHorizon(horizonURL string, c *Client) *horizonclient.Client {
	hc := &horizonclient.Client{
		HorizonURL: strings.TrimSuffix(horizonURL, "/") + "/",
		HTTP:       c,
		AppName:    appName,
	}
	// horizonclient applies its own per-request deadline; keep it outside ours.
	hc.SetHorizonTimeout(c.connectTimeout + c.readTimeout)
	return hc
}

// Do executes the HTTP request, retrying only when the connection could not be established.
//
// An error response whose body is not a JSON problem document is returned as
// an AMBIGUOUS_RESPONSE error carrying the HTTP status: the server answered,
// but nothing says why.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// Buffer the request body so it can be replayed on retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.NewNetworkError(errors.NETWORK_ERROR, "failed to read request body", err)
		}
		req.Body.Close()
	}

	for attempt := 0; ; attempt++ {
		select {
		case <-req.Context().Done():
			return nil, errors.NewNetworkError(errors.NETWORK_ERROR, "request cancelled", req.Context().Err())
		default:
		}

		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return checkProblem(req, resp)
		}

		if IsConnectionFailure(err) && attempt < c.maxRetries {
			c.logger.WithFields(log.Fields{
				"method":  req.Method,
				"host":    req.URL.Host,
				"attempt": attempt + 1,
			}).WithError(err).Debug("connection failed, retrying")
			continue
		}

		return nil, errors.NewNetworkError(
			errors.NETWORK_ERROR,
			fmt.Sprintf("%s %s failed after %d attempts", req.Method, req.URL.Path, attempt+1),
			err,
		)
	}
}

// checkProblem passes successful responses and typed problem responses
// through untouched.
func checkProblem(req *http.Request, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProblemBytes))
	resp.Body.Close()
	if err != nil {
		return nil, errors.NewNetworkError(errors.NETWORK_ERROR, "failed to read error response", err).
			With(errors.ContextStatus, resp.StatusCode)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	return nil, errors.NewNetworkError(
		errors.AMBIGUOUS_RESPONSE,
		fmt.Sprintf("%s %s returned HTTP %d without a problem document", req.Method, req.URL.Path, resp.StatusCode),
		nil,
	).With(errors.ContextStatus, resp.StatusCode)
}

// Get performs an HTTP GET request.
func (c *Client) Get(rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewNetworkError(errors.NETWORK_ERROR, "failed to create GET request", err)
	}
	return c.Do(req)
}

// PostForm performs an HTTP POST request with form data.
func (c *Client) PostForm(rawURL string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, rawURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewNetworkError(errors.NETWORK_ERROR, "failed to create POST form request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(req)
}

// IsConnectionFailure reports whether err happened before any byte of the
// request could reach the server.
func IsConnectionFailure(err error) bool {
	var opErr *gonet.OpError
	if stderrors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *gonet.DNSError
	return stderrors.As(err, &dnsErr)
}

var _ horizonclient.HTTP = (*Client)(nil)
