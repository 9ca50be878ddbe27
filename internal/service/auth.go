package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/templui/evidencekit/internal/model"
)

const AuthCookieName = "auth_token"

// AuthService issues and verifies the bearer tokens that carry a session.
// Credentials are checked by the identity provider in front of this service.
type AuthService struct {
	jwtSecret    string
	jwtExpiry    time.Duration
	isProduction bool
	now          func() time.Time
}

func NewAuthService(jwtSecret string, jwtExpiry time.Duration, isProduction bool) *AuthService {
	return &AuthService{
		jwtSecret:    jwtSecret,
		jwtExpiry:    jwtExpiry,
		isProduction: isProduction,
		now:          time.Now,
	}
}

func (s *AuthService) GenerateJWT(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrUnauthenticated
	}

	now := s.now()
	expiry := now.Add(s.jwtExpiry)
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     expiry.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiry, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Session turns a token into the caller's session
func (s *AuthService) Session(tokenString string) (model.Session, error) {
	claims, err := s.VerifyJWT(tokenString)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return model.Session{}, ErrUnauthenticated
	}

	return model.Session{UserID: userID}, nil
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
