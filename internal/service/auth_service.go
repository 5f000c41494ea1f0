package service

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/model"
	"color_academy_backend/internal/repository"
	"color_academy_backend/internal/util"
	"color_academy_backend/pkg/logger"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := s.UserRepo.FindByEmail(user.Email)
	if err == nil {
		return util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	user.Provider = model.ProviderLocal
	if user.Role == "" {
		user.Role = model.Learner
	}
	return s.UserRepo.Create(user)
}

func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil, util.ErrInvalidCredentials
	}
	if user.Password == "" {
		return "", nil, util.ErrExternalAccountOnly
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}

	return s.issue(user)
}

// LoginWithIdentity 外部认证回调：按 subject 查找，其次按邮箱关联，都没有则创建
func (s *AuthService) LoginWithIdentity(id *auth.Identity) (string, *model.User, error) {
	user, err := s.UserRepo.FindBySubject(model.ProviderOAuth, id.Subject)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, err
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	user, err = s.UserRepo.FindByEmail(email)
	switch {
	case err == nil:
		user.Subject = id.Subject
		if err := s.UserRepo.Update(user); err != nil {
			return "", nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := id.Name
		if name == "" {
			name = strings.Split(email, "@")[0]
		}
		user = &model.User{
			Name:     name,
			Email:    email,
			Role:     model.Learner,
			Provider: model.ProviderOAuth,
			Subject:  id.Subject,
		}
		if err := s.UserRepo.Create(user); err != nil {
			return "", nil, err
		}
		logger.Log.Info("Created account from external identity", zap.Uint("userId", user.ID))
	default:
		return "", nil, err
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (string, *model.User, error) {
	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}
	if err := s.UserRepo.TouchLastLogin(user.ID); err != nil {
		logger.Log.Warn("Failed to update last login", zap.Uint("userId", user.ID), zap.Error(err))
	}
	return token, user, nil
}

func (s *AuthService) GetCurrentUser(c *gin.Context) *model.User {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return nil
	}

	user, err := s.UserRepo.FindByID(claims.UserID)
	if err != nil {
		return nil
	}
	return user
}
