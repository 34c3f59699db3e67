package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prediction-settlement/internal/models"
	"prediction-settlement/internal/utils"
)

const nicknameAttempts = 5

// AuthService handles authentication business logic
type AuthService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB, logger *zap.Logger) *AuthService {
	return &AuthService{db: db, logger: logger.Named("auth")}
}

// ProcessWalletLogin finds or creates a user by wallet address. The wallet
// signature must already be verified.
func (s *AuthService) ProcessWalletLogin(ctx context.Context, walletAddress string) (*models.User, error) {
	db := s.db.WithContext(ctx)
	now := time.Now()

	var user models.User
	err := db.Where("wallet_address = ?", walletAddress).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, err := s.createUser(ctx, walletAddress, now)
		if err != nil {
			return nil, err
		}
		s.logger.Info("new user created", zap.String("wallet", walletAddress), zap.Uint("user_id", created.ID))
		return created, nil
	case err != nil:
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		s.logger.Warn("failed to record login time", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now
	s.logger.Info("user logged in", zap.String("wallet", walletAddress), zap.Uint("user_id", user.ID))
	return &user, nil
}

// createUser inserts a user with a generated nickname, retrying on nickname
// collisions. A concurrent login for the same wallet wins the insert; the
// existing row is returned in that case.
func (s *AuthService) createUser(ctx context.Context, walletAddress string, now time.Time) (*models.User, error) {
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < nicknameAttempts; attempt++ {
		nickname, err := utils.GenerateNickname()
		if err != nil {
			return nil, err
		}

		var taken int64
		if err := db.Model(&models.User{}).Where("nickname = ?", nickname).Count(&taken).Error; err != nil {
			return nil, fmt.Errorf("failed to check nickname: %w", err)
		}
		if taken > 0 {
			continue
		}

		user := models.User{
			WalletAddress: walletAddress,
			Nickname:      nickname,
			LastLoginAt:   &now,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_address"}},
			DoNothing: true,
		}).Create(&user)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to create user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var existing models.User
			if err := db.Where("wallet_address = ?", walletAddress).First(&existing).Error; err != nil {
				return nil, fmt.Errorf("failed to load user: %w", err)
			}
			return &existing, nil
		}
		return &user, nil
	}

	return nil, fmt.Errorf("could not allocate a unique nickname after %d attempts", nicknameAttempts)
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
