package store

import (
	"context"
	"errors"
	"time"

	"github.com/pfcontrol/stripsync/internal/errs"
	"github.com/pfcontrol/stripsync/internal/model"
	"gorm.io/gorm"
)

// GormStore implements Store on PostgreSQL through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var ent model.SessionEntity
	if err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}
	return model.SessionFromEntity(&ent), nil
}

func (s *GormStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	var ents []model.SessionEntity
	if err := s.db.WithContext(ctx).
		Where("airport_icao <> ''").
		Order("created_at").
		Find(&ents).Error; err != nil {
		return nil, err
	}
	out := make([]model.Session, 0, len(ents))
	for i := range ents {
		out = append(out, *model.SessionFromEntity(&ents[i]))
	}
	return out, nil
}

func (s *GormStore) UpdateSession(ctx context.Context, sessionID string, patch model.SessionPatch) (*model.Session, error) {
	var ent model.SessionEntity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", sessionID).First(&ent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrSessionNotFound
			}
			return err
		}
		updates := map[string]interface{}{}
		if patch.ActiveRunway != nil {
			updates["active_runway"] = *patch.ActiveRunway
			ent.ActiveRunway = *patch.ActiveRunway
		}
		if patch.ATIS != nil {
			ent.ATIS = *patch.ATIS
			updates["atis"] = ent.ATIS
		}
		if len(updates) == 0 {
			return nil
		}
		// Select keeps the json serializer in play for the atis column.
		return tx.Model(&ent).Select(keys(updates)).Updates(&ent).Error
	})
	if err != nil {
		return nil, err
	}
	return model.SessionFromEntity(&ent), nil
}

func (s *GormStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.FlightEntity{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", sessionID).Delete(&model.SessionEntity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrSessionNotFound
		}
		return nil
	})
}

func (s *GormStore) GetFlight(ctx context.Context, sessionID, flightID string) (*model.Flight, error) {
	var ent model.FlightEntity
	if err := s.db.WithContext(ctx).
		Where("session_id = ? AND id = ?", sessionID, flightID).
		First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrFlightNotFound
		}
		return nil, err
	}
	return model.FlightFromEntity(&ent), nil
}

func (s *GormStore) ListFlights(ctx context.Context, sessionID string, since time.Time) ([]model.Flight, error) {
	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	var ents []model.FlightEntity
	if err := q.Order("created_at").Find(&ents).Error; err != nil {
		return nil, err
	}
	out := make([]model.Flight, 0, len(ents))
	for i := range ents {
		out = append(out, *model.FlightFromEntity(&ents[i]))
	}
	return out, nil
}

func (s *GormStore) CreateFlight(ctx context.Context, f *model.Flight) (*model.Flight, error) {
	ent := model.FlightToEntity(f)
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return nil, err
	}
	return model.FlightFromEntity(ent), nil
}

func (s *GormStore) UpdateFlight(ctx context.Context, sessionID, flightID string, updates model.FlightUpdates) (*model.Flight, error) {
	var ent model.FlightEntity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND id = ?", sessionID, flightID).First(&ent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrFlightNotFound
			}
			return err
		}
		cols := updates.Columns()
		if len(cols) == 0 {
			return nil
		}
		cols["updated_at"] = time.Now()
		if err := tx.Model(&ent).Updates(cols).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", flightID).First(&ent).Error
	})
	if err != nil {
		return nil, err
	}
	return model.FlightFromEntity(&ent), nil
}

func (s *GormStore) DeleteFlight(ctx context.Context, sessionID, flightID string) error {
	res := s.db.WithContext(ctx).
		Where("session_id = ? AND id = ?", sessionID, flightID).
		Delete(&model.FlightEntity{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrFlightNotFound
	}
	return nil
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
