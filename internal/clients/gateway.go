package clients

import (
	"context"
	"errors"

	"evquota/internal/models"
)

// Gateway forwards one formatted reading to an external consumer.
type Gateway interface {
	Forward(ctx context.Context, reading models.Reading) error
}

// MultiGateway fans a reading out to every configured gateway and joins their errors.
type MultiGateway []Gateway

func (m MultiGateway) Forward(ctx context.Context, reading models.Reading) error {
	var errs []error
	for _, g := range m {
		if g == nil {
			continue
		}
		if err := g.Forward(ctx, reading); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopGateway drops every reading.
type NopGateway struct{}

func (NopGateway) Forward(context.Context, models.Reading) error { return nil }
