package submit

import (
	"strings"

	"github.com/betkit/gopoly/internal/domain"
)

// classifyRejection maps an exchange rejection message onto the error
// taxonomy. Structured codes are not available on this endpoint, so
// pattern classification happens here at the adapter boundary and
// nowhere else; unknown shapes keep the raw message.
func classifyRejection(msg string) *domain.TradeError {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "no match"),
		strings.Contains(lower, "not enough liquidity"),
		strings.Contains(lower, "fok order not filled"),
		strings.Contains(lower, "couldn't be fully filled"):
		return domain.NewError(domain.CodeNoLiquidity, "no liquidity at this price, try a limit order")

	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "api key"),
		strings.Contains(lower, "invalid signature"),
		strings.Contains(lower, "apikey"),
		strings.Contains(lower, "credential"):
		return domain.NewError(domain.CodeCredentialsExpired, "exchange credentials rejected")

	case strings.Contains(lower, "allowance"),
		strings.Contains(lower, "insufficient balance"),
		strings.Contains(lower, "not enough balance"),
		strings.Contains(lower, "balance too low"):
		return domain.NewError(domain.CodeInsufficientFunds, "insufficient balance or allowance")

	default:
		return domain.OrderRejected(msg)
	}
}
