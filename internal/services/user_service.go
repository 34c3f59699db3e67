package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserService handles user-related business logic
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByWallet retrieves a user by wallet address
func (s *UserService) GetUserByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateNickname changes the display name of a wallet
func (s *UserService) UpdateNickname(ctx context.Context, wallet, nickname string) (*models.User, error) {
	nickname = strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(nickname); n < 3 || n > 32 {
		return nil, apperr.ErrInvalidNickname
	}

	user, err := s.GetUserByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	var taken int64
	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("nickname = ? AND id <> ?", nickname, user.ID).
		Count(&taken).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check nickname: %w", err)
	}
	if taken > 0 {
		return nil, apperr.ErrNicknameTaken
	}

	if err := s.db.WithContext(ctx).Model(user).Update("nickname", nickname).Error; err != nil {
		return nil, fmt.Errorf("failed to update nickname: %w", err)
	}
	user.Nickname = nickname
	return user, nil
}
