package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/shopspring/decimal"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 720 * time.Hour
)

type userStore interface {
	CreateUser(ctx context.Context, p db.CreateUserParams) (db.User, error)
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	GetUserByRefreshToken(ctx context.Context, tokenHash string) (db.User, error)
	SetUserRefreshToken(ctx context.Context, id pgtype.UUID, tokenHash pgtype.Text) error
}

// Service coordinates credential verification and token issuance. A user
// holds at most one active refresh token at a time; login and refresh both
// overwrite it.
type Service struct {
	queries    userStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	signer     jwa.SignatureAlgorithm
	validator  TokenValidator
	issuer     string
	audience   string
}

// Config configures the auth service.
type Config struct {
	Queries         userStore
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
}

// User is the safe subset of the user model returned to clients. Credential
// material is never serialized.
type User struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	PhoneNumber *string         `json:"phone_number"`
	IsApprove   bool            `json:"is_approve"`
	Percentage  decimal.Decimal `json:"percentage"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TokenPair bundles the freshly issued access and refresh tokens.
type TokenPair struct {
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("auth: queries is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-otoparts"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "otoparts-frontend"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		queries:    cfg.Queries,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		signer:     jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:   issuer,
		audience: audience,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new user with the supplied credentials. The plaintext
// password is hashed before it ever reaches persistence.
func (s *Service) Register(ctx context.Context, name, email, phone, password string) (User, error) {
	if strings.TrimSpace(name) == "" {
		return User{}, common.ValidationError("name is required", nil)
	}
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" {
		return User{}, common.ValidationError("email is required", nil)
	}
	if len(password) < 8 {
		return User{}, common.ValidationError("password must be at least 8 characters", nil)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.queries.CreateUser(ctx, db.CreateUserParams{
		Name:         strings.TrimSpace(name),
		Email:        normalizedEmail,
		PhoneNumber:  pgText(phone),
		PasswordHash: hash,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return convertUser(created), nil
}

// Login verifies credentials and issues a fresh token pair, overwriting any
// previously stored refresh token.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || password == "" {
		return TokenPair{}, common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	}
	user, err := s.queries.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, common.NotFound("user not found, register first", err)
		}
		return TokenPair{}, fmt.Errorf("get user by email: %w", err)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !ok {
		return TokenPair{}, common.NewAppError("INVALID_CREDENTIALS", "invalid password", http.StatusUnauthorized, nil)
	}
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token, issuing a fresh pair. The previous token
// becomes unusable the moment the stored digest is overwritten.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return TokenPair{}, common.Unauthorized("refresh token is missing", nil)
	}
	user, err := s.queries.GetUserByRefreshToken(ctx, hashRefreshToken(token))
	if err != nil {
		return TokenPair{}, common.Unauthorized("invalid refresh token", nil)
	}
	return s.issueTokens(ctx, user)
}

// Revoke clears the stored refresh token for the given user.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	id, err := pgUUIDFromString(userID)
	if err != nil {
		return common.NotFound("user not found", err)
	}
	if _, err := s.queries.GetUserByID(ctx, id); err != nil {
		return common.NotFound("user not found", err)
	}
	return s.queries.SetUserRefreshToken(ctx, id, pgtype.Text{})
}

// Me fetches the authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	id, err := pgUUIDFromString(userID)
	if err != nil {
		return User{}, common.Unauthorized("unauthorized", err)
	}
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		return User{}, common.Unauthorized("unauthorized", err)
	}
	return convertUser(user), nil
}

// ResolveViewer maps a bearer token to the acting viewer: identity,
// approval flag, and price scaling factor.
func (s *Service) ResolveViewer(ctx context.Context, token string) (common.Viewer, error) {
	userID, err := s.ParseAccessToken(token)
	if err != nil {
		return common.Viewer{}, err
	}
	id, err := pgUUIDFromString(userID)
	if err != nil {
		return common.Viewer{}, common.Unauthorized("unauthorized", err)
	}
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		return common.Viewer{}, common.Unauthorized("unauthorized", err)
	}
	return common.Viewer{
		ID:         uuidString(user.ID),
		Approved:   user.IsApprove,
		Percentage: user.Percentage,
	}, nil
}

// ParseAccessToken validates an access token and returns the subject (user ID).
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.Unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.Unauthorized("invalid token", err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.Unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", common.Unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.Unauthorized("invalid token", err)
	}
	return parsed.Subject(), nil
}

func (s *Service) issueTokens(ctx context.Context, user db.User) (TokenPair, error) {
	userID := uuidString(user.ID)
	if userID == "" {
		return TokenPair{}, errors.New("auth: invalid user identifier")
	}
	accessToken, accessExpiry, err := s.signAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := generateToken(48)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpiry := s.now().Add(s.refreshTTL)
	if err := s.queries.SetUserRefreshToken(ctx, user.ID, pgtype.Text{String: hashRefreshToken(refreshToken), Valid: true}); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

func (s *Service) signAccessToken(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	builder := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(expiresAt)
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func convertUser(u db.User) User {
	view := User{
		ID:         uuidString(u.ID),
		Name:       u.Name,
		Email:      u.Email,
		IsApprove:  u.IsApprove,
		Percentage: u.Percentage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	if u.PhoneNumber.Valid {
		phone := u.PhoneNumber.String
		view.PhoneNumber = &phone
	}
	return view
}

func pgUUIDFromString(value string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		return pgtype.UUID{}, err
	}
	return id, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}

func pgText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
