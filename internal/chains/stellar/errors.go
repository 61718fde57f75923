// internal/chains/stellar/errors.go
package stellar

import (
	"errors"
	"net"
	"net/http"

	"remittance-service/internal/domain"

	"github.com/stellar/go/clients/horizonclient"
)

var codeMessages = map[string]string{
	"tx_bad_seq":              "sequence number conflict",
	"tx_bad_auth":             "transaction signature is invalid",
	"tx_insufficient_balance": "insufficient balance to pay the network fee",
	"tx_insufficient_fee":     "network fee too low",
	"tx_no_source_account":    "source account does not exist on the ledger",
	"tx_too_late":             "transaction expired before it was applied",
	"tx_failed":               "payment operation failed",
	"op_underfunded":          "insufficient funds",
	"op_low_reserve":          "payment would drop the account below the minimum reserve",
	"op_no_destination":       "destination account does not exist",
	"op_malformed":            "payment is malformed",
	"op_line_full":            "destination cannot receive more of this asset",
	"account_unavailable":     "source account could not be loaded",
	"build_failed":            "payment could not be built",
	"sign_failed":             "payment could not be signed",
	"horizon_unavailable":     "ledger is temporarily unavailable",
	"transport":               "ledger could not be reached",
}

func describeCode(code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "ledger rejected the transaction"
}

// resultCodeError turns Horizon result codes into a LedgerError. Only a
// sequence conflict is retryable.
func resultCodeError(txCode string, opCodes []string, hash string) *domain.LedgerError {
	code := txCode
	if txCode == "tx_failed" {
		for _, op := range opCodes {
			if op != "" && op != "op_success" {
				code = op
				break
			}
		}
	}
	return &domain.LedgerError{
		Code:      code,
		Message:   describeCode(code),
		Hash:      hash,
		Retryable: txCode == "tx_bad_seq",
	}
}

// classifySubmitError decides whether a failed submission is definitive.
// Horizon timeouts and transport errors leave the outcome unknown.
func classifySubmitError(err error, hash string) *domain.LedgerError {
	if hErr := horizonclient.GetError(err); hErr != nil {
		if hErr.Problem.Status == http.StatusGatewayTimeout {
			return &domain.LedgerError{Code: "timeout", Message: "ledger did not confirm in time", Hash: hash, Ambiguous: true}
		}
		if codes, cerr := hErr.ResultCodes(); cerr == nil && codes != nil && codes.TransactionCode != "" {
			return resultCodeError(codes.TransactionCode, codes.OperationCodes, hash)
		}
		if hErr.Problem.Status >= 500 {
			return &domain.LedgerError{Code: "horizon_unavailable", Message: describeCode("horizon_unavailable"), Detail: hErr.Problem.Title, Hash: hash, Ambiguous: true}
		}
		return &domain.LedgerError{Code: "rejected", Message: describeCode("rejected"), Detail: hErr.Problem.Title, Hash: hash}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.LedgerError{Code: "timeout", Message: "ledger did not respond in time", Hash: hash, Ambiguous: true}
	}
	return &domain.LedgerError{Code: "transport", Message: describeCode("transport"), Detail: err.Error(), Hash: hash, Ambiguous: true}
}
