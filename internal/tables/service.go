// Package tables manages the dining table catalog and the availability
// lookup that backs the public "which tables are free" query.
package tables

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/apperr"
	"tablebook/internal/model"
	"tablebook/internal/storage"
	"tablebook/internal/timeslot"
)

type Store interface {
	Create(ctx context.Context, t *model.Table) error
	GetByID(ctx context.Context, id string) (model.Table, error)
	List(ctx context.Context) ([]model.Table, error)
	Update(ctx context.Context, id string, name *string, seats *int) (model.Table, error)
	Delete(ctx context.Context, id string) error
	ListAvailable(ctx context.Context, start, end time.Time, minSeats *int) ([]model.Table, error)
}

type Service struct {
	store Store
	rules timeslot.Rules
	now   func() time.Time
}

func NewService(store Store, rules timeslot.Rules) *Service {
	return &Service{
		store: store,
		rules: rules,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, name string, seats int) (model.Table, error) {
	if name == "" {
		return model.Table{}, apperr.BusinessRule("Table name is required")
	}
	if seats < 1 {
		return model.Table{}, apperr.BusinessRule("Table must seat at least one guest")
	}
	t := model.Table{ID: uuid.NewString(), Name: name, Seats: seats}
	if err := s.store.Create(ctx, &t); err != nil {
		if storage.IsDuplicate(err) {
			return model.Table{}, apperr.BusinessRule("A table with this name already exists")
		}
		return model.Table{}, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Table, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Table{}, apperr.NotFound("Table not found")
		}
		return model.Table{}, err
	}
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]model.Table, error) {
	return s.store.List(ctx)
}

func (s *Service) Update(ctx context.Context, id string, name *string, seats *int) (model.Table, error) {
	if name != nil && *name == "" {
		return model.Table{}, apperr.BusinessRule("Table name is required")
	}
	if seats != nil && *seats < 1 {
		return model.Table{}, apperr.BusinessRule("Table must seat at least one guest")
	}
	t, err := s.store.Update(ctx, id, name, seats)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Table{}, apperr.NotFound("Table not found")
		}
		if storage.IsDuplicate(err) {
			return model.Table{}, apperr.BusinessRule("A table with this name already exists")
		}
		return model.Table{}, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("Table not found")
		}
		return err
	}
	return nil
}

// ListAvailable validates the requested slot with the booking rules, then
// returns tables free for the whole interval.
func (s *Service) ListAvailable(ctx context.Context, date timeslot.Date, at timeslot.TimeOfDay, minSeats *int) ([]model.Table, error) {
	slot := s.rules.BuildSlot(date, at)
	if err := s.rules.Validate(slot, s.now()); err != nil {
		return nil, err
	}
	start, end := slot.UTC()
	return s.store.ListAvailable(ctx, start, end, minSeats)
}
