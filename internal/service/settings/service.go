package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"deposit-core/internal/model"
)

// Service reads and writes per-user conversion settings. Reads are not
// cached here: the table is authoritative.
type Service struct {
	db                 *gorm.DB
	defaultAutoConvert bool
}

func NewService(db *gorm.DB, defaultAutoConvert bool) *Service {
	return &Service{db: db, defaultAutoConvert: defaultAutoConvert}
}

// Get returns the user's setting, or the global default if none is stored.
func (s *Service) Get(ctx context.Context, userID uint64) (model.UserSetting, error) {
	var row model.UserSetting
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UserSetting{UserID: userID, AutoConvert: s.defaultAutoConvert}, nil
	}
	if err != nil {
		return model.UserSetting{}, err
	}
	return row, nil
}

func (s *Service) GetAutoConvert(ctx context.Context, userID uint64) (bool, error) {
	row, err := s.Get(ctx, userID)
	return row.AutoConvert, err
}

// SetAutoConvert upserts the flag, keeping any stored rate source.
func (s *Service) SetAutoConvert(ctx context.Context, userID uint64, enabled bool) error {
	row := model.UserSetting{UserID: userID, AutoConvert: enabled}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"auto_convert", "updated_at"}),
	}).Create(&row).Error
}

// SetRateSource upserts the named rate source ("" for the default).
func (s *Service) SetRateSource(ctx context.Context, userID uint64, source string) error {
	row := model.UserSetting{UserID: userID, AutoConvert: s.defaultAutoConvert, RateSource: source}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate_source", "updated_at"}),
	}).Create(&row).Error
}
