package services

import (
	"fmt"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Register(name, email, password string) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         auth.TokenIssuer
}

func NewAuthService(repo repositories.IUserRepository, tokens auth.TokenIssuer) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

// Register validates the request, hashes the password and persists the
// user, then issues the initial session token. Validation runs before any
// expensive cryptographic operation.
func (s *AuthService) Register(name, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}

	// Hashing happens in the service layer to keep the repository unaware
	// of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(name, email, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if name or email is taken
	}

	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Login verifies the credentials and issues a JWT. Failures collapse into
// a generic invalid-credentials error to prevent user enumeration.
func (s *AuthService) Login(email, password string) (Token, error) {
	user, hash, err := s.userRepository.GetByEmail(email)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, hash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
