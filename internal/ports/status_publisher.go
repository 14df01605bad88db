package ports

import "github.com/alejandrodnm/polyagent/internal/domain"

// StatusPublisher pushes portfolio snapshots to dashboards. Publish must not
// block the caller.
type StatusPublisher interface {
	Publish(stats domain.PortfolioStats)
}
