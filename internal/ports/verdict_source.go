package ports

import (
	"context"

	"github.com/alejandrodnm/polyagent/internal/domain"
)

// VerdictSource produces a trade verdict for a market. Implementations may
// call external models; the API cost of each call is reported in the verdict.
type VerdictSource interface {
	Judge(ctx context.Context, market domain.Market) (domain.Verdict, error)
}
