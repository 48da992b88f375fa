// Package sdk is the public entry point of the wallet core. A Client turns
// wallet intents into ledger operations and queries, runs each one on a
// bounded background worker pool, and delivers exactly one Result per call
// on the client's foreground Loop.
//
// Typical use:
//
//	cfg, _ := config.Load("wallet.yaml")
//	client, _ := sdk.NewClient(cfg)
//	defer client.Close()
//
//	client.SendPayment(session, sdk.PaymentRequest{Destination: dest, Amount: "10"},
//		func(res stellarwallet.Result[stellarwallet.SubmissionOutcome]) { ... })
//	go client.Loop().Run(ctx)
package sdk

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/config"
	"github.com/marwen-abid/stellar-wallet-go/core/account"
	"github.com/marwen-abid/stellar-wallet-go/core/net"
	"github.com/marwen-abid/stellar-wallet-go/core/txbuild"
	"github.com/marwen-abid/stellar-wallet-go/dispatch"
	"github.com/marwen-abid/stellar-wallet-go/submission"
)

// Client is safe for concurrent use. Every call captures its inputs before
// returning; nothing is read from the session afterwards.
type Client struct {
	cfg        *config.Config
	logger     *log.Entry
	queries    *account.Service
	builder    *txbuild.Builder
	pipeline   *submission.Pipeline
	dispatcher *dispatch.Dispatcher
	ambiguous  submission.AmbiguousPolicy
	signer     stellarwallet.Signer
}

type clientOptions struct {
	queryHorizon  horizonclient.ClientInterface
	submitHorizon horizonclient.ClientInterface
	loop          *dispatch.Loop
	registerer    prometheus.Registerer
	logger        *log.Entry
	hooks         *submission.HookRegistry
	signer        stellarwallet.Signer
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithHorizonClients replaces the Horizon clients built from the
// configuration. query serves account lookups and queries; submit serves
// transaction submission.
func WithHorizonClients(query, submit horizonclient.ClientInterface) ClientOption {
	return func(o *clientOptions) {
		o.queryHorizon = query
		o.submitHorizon = submit
	}
}

// WithLoop delivers results on loop instead of a Loop owned by the client.
func WithLoop(loop *dispatch.Loop) ClientOption {
	return func(o *clientOptions) {
		o.loop = loop
	}
}

// WithRegisterer registers dispatch metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(l *log.Entry) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithHooks attaches submission lifecycle hooks.
func WithHooks(h *submission.HookRegistry) ClientOption {
	return func(o *clientOptions) {
		o.hooks = h
	}
}

// WithSigner sets a signer used when the session identity carries no seed,
// such as a hardware or remote signer built with signers.FromCallback.
func WithSigner(s stellarwallet.Signer) ClientOption {
	return func(o *clientOptions) {
		o.signer = s
	}
}

// NewClient wires the network clients, query service, transaction builder,
// submission pipeline and dispatcher described by cfg. A nil cfg uses
// config.Default().
func NewClient(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewEntry(cfg.NewLogger())
	}

	if o.queryHorizon == nil {
		o.queryHorizon = net.NewHorizon(cfg.HorizonURL, net.NewQueryClient(
			net.WithConnectTimeout(cfg.ConnectTimeout),
			net.WithReadTimeout(cfg.QueryReadTimeout),
			net.WithMaxRetries(cfg.MaxRetries),
			net.WithLogger(logger.WithField("client", "query")),
		))
	}
	if o.submitHorizon == nil {
		o.submitHorizon = net.NewHorizon(cfg.HorizonURL, net.NewSubmitClient(
			net.WithConnectTimeout(cfg.ConnectTimeout),
			net.WithReadTimeout(cfg.SubmitReadTimeout),
			net.WithMaxRetries(cfg.MaxRetries),
			net.WithLogger(logger.WithField("client", "submit")),
		))
	}

	builder, err := txbuild.NewBuilder(cfg.NetworkPassphrase,
		txbuild.WithBaseFee(cfg.BaseFee),
		txbuild.WithTimeout(cfg.TxTimeout),
	)
	if err != nil {
		return nil, err
	}

	queries := account.NewService(o.queryHorizon,
		account.WithEffectsLimit(cfg.EffectsLimit),
		account.WithLogger(logger.WithField("component", "query")),
	)

	pipelineOpts := []submission.PipelineOption{submission.WithLogger(logger.WithField("component", "submission"))}
	if o.hooks != nil {
		pipelineOpts = append(pipelineOpts, submission.WithHooks(o.hooks))
	}
	pipeline := submission.NewPipeline(queries, o.submitHorizon, builder, pipelineOpts...)

	loop := o.loop
	if loop == nil {
		loop = dispatch.NewLoop(logger.WithField("component", "loop"))
	}
	dispatcher := dispatch.NewDispatcher(loop,
		dispatch.WithWorkers(cfg.Workers),
		dispatch.WithQueueSize(cfg.QueueSize),
		dispatch.WithLogger(logger.WithField("component", "dispatch")),
		dispatch.WithRegisterer(o.registerer),
	)

	ambiguous := submission.FailOnAmbiguous
	if cfg.AmbiguousPolicy == config.AmbiguousCreate {
		ambiguous = submission.CreateOnAmbiguous
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		queries:    queries,
		builder:    builder,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		ambiguous:  ambiguous,
		signer:     o.signer,
	}, nil
}

// Loop returns the foreground loop every callback is delivered on.
// The caller must run it.
func (c *Client) Loop() *dispatch.Loop {
	return c.dispatcher.Loop()
}

// Hooks returns the submission lifecycle hook registry.
func (c *Client) Hooks() *submission.HookRegistry {
	return c.pipeline.Hooks()
}

// NetworkPassphrase returns the passphrase every transaction is signed for.
func (c *Client) NetworkPassphrase() string {
	return c.builder.NetworkPassphrase
}

// Close waits for dispatched operations to finish. Their results are still
// posted to the loop.
func (c *Client) Close() {
	c.dispatcher.Close()
}
