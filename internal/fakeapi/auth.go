package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/request"
	"github.com/benvon/matrix-todo/internal/validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newID() string {
	return uuid.New().String()
}

// IssueToken signs a token for userID that expires after ttl. A negative ttl yields an expired token.
func (s *Server) IssueToken(userID string, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	var email string
	for _, u := range s.users {
		if u.profile.ID == userID {
			email = u.profile.Email
			break
		}
	}
	s.mu.Unlock()

	now := s.now()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":     userID,
		"user_id": userID,
		"email":   email,
		"role":    "user",
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	_, exists := s.users[req.Email]
	s.mu.Unlock()
	if exists {
		s.respondError(w, http.StatusBadRequest, "Email already registered")
		return
	}

	id := s.nextID()
	if err := s.AddUser(id, req.Email, req.Password, req.Name); err != nil {
		s.logger.Error("failed_to_create_user", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	s.respondAuth(w, http.StatusCreated, id)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(req.Password)) != nil {
		s.respondError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	s.respondAuth(w, http.StatusOK, u.profile.ID)
}

func (s *Server) respondAuth(w http.ResponseWriter, status int, userID string) {
	tok, exp, err := s.IssueToken(userID, s.tokenTTL)
	if err != nil {
		s.logger.Error("failed_to_issue_token", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	s.respondJSON(w, status, models.AuthResult{
		Token:     tok,
		UserID:    userID,
		ExpiresAt: exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := request.Caller(r.Context())
	if u == nil {
		s.respondError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	s.respondJSON(w, http.StatusOK, u)
}

// auth validates the bearer token and attaches the user to the request context
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := request.BearerToken(r)
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		userID, err := s.verify(raw)
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		profile := s.profile(userID)
		if profile == nil {
			s.respondError(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(request.WithCaller(r.Context(), profile)))
	})
}

func (s *Server) verify(raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return "", errors.New("token has no subject")
	}
	return userID, nil
}

func (s *Server) profile(userID string) *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.profile.ID == userID {
			p := u.profile
			return &p
		}
	}
	return nil
}
