package submission

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"

	stellarwallet "github.com/marwen-abid/stellar-wallet-go"
	"github.com/marwen-abid/stellar-wallet-go/core/identity"
	"github.com/marwen-abid/stellar-wallet-go/core/net"
	"github.com/marwen-abid/stellar-wallet-go/core/txbuild"
	"github.com/marwen-abid/stellar-wallet-go/errors"
)

// AmbiguousPolicy decides what a payment does when the destination lookup
// returns an untyped server failure that may or may not mean "not found".
type AmbiguousPolicy int

const (
	// FailOnAmbiguous fails the run with AMBIGUOUS_RESPONSE.
	FailOnAmbiguous AmbiguousPolicy = iota
	// CreateOnAmbiguous treats the response as "not found" and creates the
	// destination account.
	CreateOnAmbiguous
)

// AccountLoader loads fresh account snapshots. *account.Service implements it.
type AccountLoader interface {
	LoadAccount(ctx context.Context, accountID string) (*stellarwallet.AccountSnapshot, error)
}

// Submitter posts a signed envelope. horizonclient.ClientInterface implements it.
type Submitter interface {
	SubmitTransactionXDR(transactionXdr string) (hProtocol.Transaction, error)
}

// Request is one send-style operation with everything captured at dispatch.
type Request struct {
	Source    string
	Signer    stellarwallet.Signer
	Operation stellarwallet.Operation
	Memo      string
	Ambiguous AmbiguousPolicy
}

// Run is the state of one pipeline execution. Hooks receive it on every
// state entry.
type Run struct {
	Request Request
	State   State

	// Operation is the operation actually built; for a payment to a missing
	// account it is the substituted CreateAccount.
	Operation stellarwallet.Operation
	Envelope  *txbuild.Envelope
	Outcome   *stellarwallet.SubmissionOutcome
	Err       error

	history []State
}

// History returns the states entered so far, in order.
func (r *Run) History() []State {
	return append([]State(nil), r.history...)
}

// Pipeline executes submission runs. It is safe for concurrent use; runs
// share no mutable state.
type Pipeline struct {
	accounts  AccountLoader
	submitter Submitter
	builder   *txbuild.Builder
	hooks     *HookRegistry
	logger    *log.Entry
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithHooks sets the lifecycle hook registry.
func WithHooks(h *HookRegistry) PipelineOption {
	return func(p *Pipeline) {
		p.hooks = h
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *log.Entry) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a Pipeline. accounts is used both for destination
// resolution and for the source snapshot; submitter should be backed by the
// long-timeout submit client.
func NewPipeline(accounts AccountLoader, submitter Submitter, builder *txbuild.Builder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		accounts:  accounts,
		submitter: submitter,
		builder:   builder,
		hooks:     NewHookRegistry(),
		logger:    log.NewEntry(log.StandardLogger()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Hooks returns the pipeline's hook registry.
func (p *Pipeline) Hooks() *HookRegistry {
	return p.hooks
}

// Execute runs req to a terminal state. On success it returns the outcome.
// On failure it returns the error and, when the ledger rejected the
// envelope, an outcome carrying the result codes. A submission is never
// retried: a NETWORK_ERROR after Submit means the ledger may or may not have
// applied the transaction.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*stellarwallet.SubmissionOutcome, error) {
	run := p.execute(ctx, req)
	if run.State == StateSucceeded {
		return run.Outcome, nil
	}
	return run.Outcome, run.Err
}

func (p *Pipeline) execute(ctx context.Context, req Request) *Run {
	run := &Run{Request: req, State: StateStart, history: []State{StateStart}}
	logger := p.logger.WithFields(log.Fields{
		"op":      kindOf(req.Operation),
		"account": req.Source,
	})

	if err := validateRequest(req); err != nil {
		run.Err = err
		p.enter(run, StateFailed)
		return run
	}

	if pay, ok := req.Operation.(stellarwallet.Payment); ok {
		run.Operation = pay
		p.enter(run, StateResolveDestination)
	} else {
		run.Operation = req.Operation
		p.enter(run, StateBuildOperation)
	}

	for !run.State.IsTerminal() {
		var next State
		switch run.State {
		case StateResolveDestination:
			next = p.resolveDestination(ctx, run, logger)
		case StateBuildCreateAccount, StateBuildOperation:
			next = p.build(ctx, run)
		case StateSubmit:
			next = p.submit(run)
		default:
			run.Err = errors.NewSubmitError(errors.TRANSITION_INVALID, fmt.Sprintf("no handler for state %s", run.State), nil)
			next = StateFailed
		}
		p.enter(run, next)
	}

	entry := logger.WithField("state", run.State)
	if run.Err != nil {
		entry.WithError(run.Err).Info("submission run failed")
	} else {
		entry.WithField("hash", run.Outcome.Hash).Info("submission run succeeded")
	}
	return run
}

func (p *Pipeline) enter(run *Run, next State) {
	if err := ValidateTransition(run.State, next); err != nil {
		if run.Err == nil {
			run.Err = err
		}
		next = StateFailed
	}
	run.State = next
	run.history = append(run.history, next)
	p.hooks.Trigger(next, run)
}

func (p *Pipeline) resolveDestination(ctx context.Context, run *Run, logger *log.Entry) State {
	pay := run.Operation.(stellarwallet.Payment)

	_, err := p.accounts.LoadAccount(ctx, pay.Destination)
	switch {
	case err == nil:
		return StateBuildOperation
	case errors.CodeOf(err) == errors.ACCOUNT_NOT_FOUND:
		return p.substituteCreateAccount(run, pay, err)
	case errors.CodeOf(err) == errors.AMBIGUOUS_RESPONSE && run.Request.Ambiguous == CreateOnAmbiguous:
		logger.WithField("destination", pay.Destination).Warn("ambiguous destination lookup treated as not found")
		return p.substituteCreateAccount(run, pay, err)
	}

	run.Err = err
	return StateFailed
}

func (p *Pipeline) substituteCreateAccount(run *Run, pay stellarwallet.Payment, cause error) State {
	if !pay.Asset.IsNative() {
		run.Err = errors.NewSubmitError(
			errors.ACCOUNT_NOT_FOUND,
			fmt.Sprintf("destination does not exist and cannot be created with %s", pay.Asset),
			cause,
		).With(errors.ContextAccount, pay.Destination)
		return StateFailed
	}
	run.Operation = stellarwallet.CreateAccount{Destination: pay.Destination, StartingBalance: pay.Amount}
	return StateBuildCreateAccount
}

func (p *Pipeline) build(ctx context.Context, run *Run) State {
	req := run.Request

	snapshot, err := p.accounts.LoadAccount(ctx, req.Source)
	if err != nil {
		run.Err = err
		return StateFailed
	}

	env, err := p.builder.Build(snapshot, []stellarwallet.Operation{run.Operation}, req.Memo)
	if err != nil {
		run.Err = err
		return StateFailed
	}

	signed, err := p.builder.Sign(ctx, env, req.Signer)
	if err != nil {
		run.Err = err
		return StateFailed
	}

	run.Envelope = signed
	return StateSubmit
}

func (p *Pipeline) submit(run *Run) State {
	kind := run.Operation.Kind()

	envXDR, err := run.Envelope.Base64()
	if err != nil {
		run.Err = err
		return StateFailed
	}
	hash, err := run.Envelope.Hash()
	if err != nil {
		run.Err = err
		return StateFailed
	}

	tx, err := p.submitter.SubmitTransactionXDR(envXDR)
	if err != nil {
		cerr := net.Classify(err)
		if errors.CodeOf(cerr) != errors.SERVER_ERROR {
			// No usable verdict from the ledger; the transaction may still apply.
			run.Err = cerr
			return StateFailed
		}
		txCode, opCodes := net.ResultCodes(cerr)
		run.Outcome = &stellarwallet.SubmissionOutcome{
			Hash:            hash,
			Operation:       kind,
			TransactionCode: txCode,
			OperationCodes:  opCodes,
		}
		run.Err = rejection(run.Outcome, cerr)
		return StateFailed
	}

	run.Outcome = &stellarwallet.SubmissionOutcome{
		Successful: tx.Successful,
		Hash:       hash,
		Ledger:     tx.Ledger,
		Operation:  kind,
	}
	if tx.Hash != "" {
		run.Outcome.Hash = tx.Hash
	}
	if !tx.Successful {
		run.Err = rejection(run.Outcome, nil)
		return StateFailed
	}
	return StateSucceeded
}

func rejection(outcome *stellarwallet.SubmissionOutcome, cause error) error {
	detail := outcome.FirstOperationCode()
	if detail == "" {
		detail = outcome.TransactionCode
	}
	if detail == "" {
		detail = "unknown"
	}
	return errors.NewSubmitError(
		errors.SUBMISSION_FAILED,
		fmt.Sprintf("ledger rejected %s: %s", outcome.Operation, detail),
		cause,
	).
		With(errors.ContextTransactionCode, outcome.TransactionCode).
		With(errors.ContextOperationCodes, outcome.OperationCodes)
}

func validateRequest(req Request) error {
	if req.Operation == nil {
		return errors.NewSubmitError(errors.BUILD_FAILED, "operation is required", nil)
	}
	if _, err := identity.ResolveAccountID(req.Source); err != nil {
		return err
	}
	if req.Signer == nil {
		return errors.NewSubmitError(errors.SIGNER_ERROR, "signer is required", nil)
	}
	if req.Signer.PublicKey() != req.Source {
		return errors.NewSubmitError(errors.SIGNER_ERROR, "signer does not match source account", nil).
			With(errors.ContextAccount, req.Source)
	}
	if err := txbuild.ValidateMemo(req.Memo); err != nil {
		return err
	}
	if err := txbuild.ValidateOperation(req.Operation); err != nil {
		return err
	}

	switch op := req.Operation.(type) {
	case stellarwallet.Payment:
		return validDestination(op.Destination)
	case stellarwallet.CreateAccount:
		return validDestination(op.Destination)
	case stellarwallet.SetInflationDestination:
		return validDestination(op.Destination)
	}
	return nil
}

func validDestination(dest string) error {
	_, err := identity.ResolveAccountID(dest)
	return err
}

func kindOf(op stellarwallet.Operation) stellarwallet.OperationKind {
	if op == nil {
		return ""
	}
	return op.Kind()
}
