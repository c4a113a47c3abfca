package service

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	"coachline/internal/models"
	"coachline/internal/repository"
)

var (
	ErrOperatorAlreadyExists = errors.New("an operator account already exists")
	ErrOperatorNotFound      = errors.New("operator not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// AuthService bootstraps the single first-operator account and issues JWTs
// for the oversight admin API (spec.md SPEC_FULL §5). Adapted from the
// teacher's parent-account AuthService: role handling is dropped since an
// operator has exactly one flat oversight role, and the Data Key envelope
// is dropped since operators don't own encrypted transcript state.
type AuthService interface {
	RegisterFirstOperator(username, password string) (*models.Operator, error)
	Login(username, password string) (string, time.Time, error)
}

type authService struct {
	repo      repository.OperatorRepository
	logger    *zap.Logger
	jwtSecret []byte
}

func NewAuthService(repo repository.OperatorRepository, jwtSecret []byte, logger *zap.Logger) AuthService {
	return &authService{repo: repo, jwtSecret: jwtSecret, logger: logger}
}

func (s *authService) RegisterFirstOperator(username, password string) (*models.Operator, error) {
	count, err := s.repo.CountOperators()
	if err != nil {
		s.logger.Error("failed to count operators", zap.Error(err))
		return nil, fmt.Errorf("failed to check existing operators: %w", err)
	}
	if count > 0 {
		return nil, ErrOperatorAlreadyExists
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op := &models.Operator{Username: username, PasswordHash: passwordHash}
	if err := s.repo.CreateOperator(op); err != nil {
		s.logger.Error("failed to create operator", zap.Error(err))
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	return op, nil
}

func (s *authService) Login(username, password string) (string, time.Time, error) {
	op, err := s.repo.GetOperatorByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrOperatorNotFound
		}
		s.logger.Error("failed to get operator by username", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to retrieve operator: %w", err)
	}

	if !verifyPassword(op.PasswordHash, password) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &models.Claims{
		Username: op.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("failed to sign JWT", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("operator logged in", zap.String("username", op.Username))
	return tokenString, expirationTime, nil
}

// hashPassword uses Argon2id, encoding params/salt/hash into one string:
// $argon2id$v=19$m=65536,t=1,p=4$salt$hash
func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, 64*1024, 1, 4, encodedSalt, encodedHash), nil
}

func verifyPassword(hashedPassword, password string) bool {
	sections := splitHashSections(hashedPassword)
	if len(sections) != 5 {
		return false
	}

	var m, t uint32
	var p uint32
	fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &m, &t, &p)

	decodedSalt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false
	}

	comparisonHash := argon2.IDKey([]byte(password), decodedSalt, t, m, uint8(p), uint32(len(decodedHash)))
	return fmt.Sprintf("%x", comparisonHash) == fmt.Sprintf("%x", decodedHash)
}

func splitHashSections(encoded string) []string {
	var sections []string
	start := 0
	for i := 0; i < len(encoded); i++ {
		if encoded[i] == '$' {
			if i > start {
				sections = append(sections, encoded[start:i])
			}
			start = i + 1
		}
	}
	if start < len(encoded) {
		sections = append(sections, encoded[start:])
	}
	return sections
}
