package pricefeed

import (
	"context"

	"solana-sniper/internal/domain"
)

// Feed defines the streaming price subscription interface.
type Feed interface {
	// SubscribeMint subscribes to price updates for a single mint.
	SubscribeMint(ctx context.Context, mint string) (<-chan domain.PriceUpdate, error)

	// Unsubscribe stops the subscription for a mint and closes its channel.
	Unsubscribe(mint string) error

	// Close closes the feed connection and all subscription channels.
	Close() error
}
