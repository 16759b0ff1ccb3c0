package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wibonela/boma/internal/domain"
)

// PropertyRepository gives the booking core read-only access to the pricing
// snapshot of a listing. The listings side owns writes.
type PropertyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error)
}

type PGPropertyRepository struct {
	db DB
}

func NewPropertyRepository(db DB) *PGPropertyRepository {
	return &PGPropertyRepository{db: db}
}

func (r *PGPropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	err := r.db.QueryRow(ctx, `
		SELECT id, host_id, title, base_price_per_night, cleaning_fee,
		       minimum_nights, maximum_nights, max_guests, currency,
		       cancellation_policy, status
		FROM properties WHERE id = $1`, id).
		Scan(&p.ID, &p.HostID, &p.Title, &p.BasePricePerNight, &p.CleaningFee,
			&p.MinimumNights, &p.MaximumNights, &p.MaxGuests, &p.Currency,
			&p.CancellationPolicy, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFoundf("property %s not found", id)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &p, nil
}

var _ PropertyRepository = (*PGPropertyRepository)(nil)
