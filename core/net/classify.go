package net

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"

	"github.com/marwen-abid/stellar-wallet-go/errors"
)

// GenericServerErrorMessage is the message some gateways return in place of a
// typed Horizon problem. Matching it is a heuristic: the real cause is unknown.
const GenericServerErrorMessage = "Error response from the server."

// problemDecodeFailure prefixes the error horizonclient returns when an error
// response body is not a problem document.
const problemDecodeFailure = "error decoding horizon.Problem"

const timeoutProblemType = "https://stellar.org/horizon-errors/timeout"

// Classify maps an error returned by horizonclient onto the wallet taxonomy:
//   - a typed Horizon problem with status 404 becomes ACCOUNT_NOT_FOUND
//   - a 504 timeout problem becomes NETWORK_ERROR: the outcome is unknown
//   - any other typed Horizon problem becomes SERVER_ERROR, carrying result codes when present
//   - an untyped problem, an undecodable error body or the generic server
//     message becomes AMBIGUOUS_RESPONSE
//   - everything else is a transport failure, NETWORK_ERROR
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var herr *horizonclient.Error
	if stderrors.As(err, &herr) {
		return classifyProblem(herr)
	}

	if msg := err.Error(); strings.Contains(msg, GenericServerErrorMessage) || strings.Contains(msg, problemDecodeFailure) {
		return errors.NewNetworkError(errors.AMBIGUOUS_RESPONSE, "server returned an untyped error", err)
	}

	var werr *errors.WalletError
	if errors.As(err, &werr) {
		return werr
	}

	return errors.NewNetworkError(errors.NETWORK_ERROR, "no usable response from horizon", err)
}

func classifyProblem(herr *horizonclient.Error) error {
	status := herr.Problem.Status
	if status == 0 && herr.Response != nil {
		status = herr.Response.StatusCode
	}

	switch {
	case status == http.StatusNotFound || horizonclient.IsNotFoundError(herr):
		return errors.NewNetworkError(errors.ACCOUNT_NOT_FOUND, "resource not found", herr).
			With(errors.ContextStatus, http.StatusNotFound)
	case status == http.StatusGatewayTimeout || herr.Problem.Type == timeoutProblemType:
		return errors.NewNetworkError(errors.NETWORK_ERROR, "horizon timed out, the transaction may still be applied", herr).
			With(errors.ContextStatus, http.StatusGatewayTimeout)
	case status == 0:
		return errors.NewNetworkError(errors.AMBIGUOUS_RESPONSE, "server returned an untyped error", herr)
	}

	werr := errors.NewNetworkError(
		errors.SERVER_ERROR,
		fmt.Sprintf("horizon rejected request: %s", herr.Problem.Title),
		herr,
	).With(errors.ContextStatus, status)

	if codes, codesErr := herr.ResultCodes(); codesErr == nil && codes != nil {
		werr.With(errors.ContextTransactionCode, codes.TransactionCode)
		werr.With(errors.ContextOperationCodes, codes.OperationCodes)
	}
	return werr
}

// ResultCodes extracts submission result codes carried by a classified error.
func ResultCodes(err error) (txCode string, opCodes []string) {
	var werr *errors.WalletError
	if !errors.As(err, &werr) {
		return "", nil
	}
	for werr != nil {
		if v, ok := werr.Context[errors.ContextTransactionCode].(string); ok {
			txCode = v
		}
		if v, ok := werr.Context[errors.ContextOperationCodes].([]string); ok {
			opCodes = v
		}
		if txCode != "" || opCodes != nil {
			return txCode, opCodes
		}
		var next *errors.WalletError
		if werr.Cause == nil || !errors.As(werr.Cause, &next) {
			break
		}
		werr = next
	}
	return txCode, opCodes
}
