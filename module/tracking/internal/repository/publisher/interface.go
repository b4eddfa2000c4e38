package publisher

import (
	"context"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *domain.TripAlert) error
}
