package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const tokenLifetime = 30 * 24 * time.Hour

// AuthService issues and verifies the bearer tokens partners authenticate
// with. Who may touch a cycle is decided downstream by couple membership;
// this service only establishes identity.
type AuthService struct {
	partnerRepo repository.PartnerRepository
	jwtSecret   []byte
}

func NewAuthService(partnerRepo repository.PartnerRepository, jwtSecret string) *AuthService {
	return &AuthService{partnerRepo: partnerRepo, jwtSecret: []byte(jwtSecret)}
}

func (service *AuthService) Register(ctx context.Context, email string, password string, displayName string) (models.Partner, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Partner{}, "", fmt.Errorf("hashing password: %w", err)
	}

	partner, err := service.partnerRepo.Create(ctx, models.Partner{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	})
	if err != nil {
		return models.Partner{}, "", err
	}

	token, err := service.issueToken(partner.ID)
	if err != nil {
		return models.Partner{}, "", err
	}
	return partner, token, nil
}

func (service *AuthService) Login(ctx context.Context, email string, password string) (models.Partner, string, error) {
	partner, err := service.partnerRepo.FindByEmail(ctx, email)
	if err != nil {
		return models.Partner{}, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(partner.PasswordHash), []byte(password)); err != nil {
		return models.Partner{}, "", ErrInvalidCredentials
	}

	token, err := service.issueToken(partner.ID)
	if err != nil {
		return models.Partner{}, "", err
	}
	return partner, token, nil
}

// Authenticate resolves a bearer token to the partner it was issued to.
func (service *AuthService) Authenticate(ctx context.Context, tokenString string) (models.Partner, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return service.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return models.Partner{}, ErrInvalidCredentials
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return models.Partner{}, ErrInvalidCredentials
	}

	return service.partnerRepo.FindByID(ctx, subject)
}

func (service *AuthService) issueToken(partnerID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": partnerID,
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	})

	signed, err := token.SignedString(service.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
