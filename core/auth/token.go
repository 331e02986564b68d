package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMissing  = errors.New("download token missing")
	ErrTokenInvalid  = errors.New("download token invalid or expired")
	ErrTokenMismatch = errors.New("download token does not grant this job")
)

// downloadClaims 下载令牌只绑定任务 ID
type downloadClaims struct {
	jwt.RegisteredClaims
	JobID string `json:"job_id"`
}

// DownloadTokens issues and checks short-lived tokens that grant access to one job's results.
type DownloadTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewDownloadTokens(secret string, ttl time.Duration) *DownloadTokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DownloadTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue 生成下载令牌
func (d *DownloadTokens) Issue(jobID string) (string, time.Time, error) {
	now := d.now()
	exp := now.Add(d.ttl)
	claims := downloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   jobID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "chroma",
		},
		JobID: jobID,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign download token: %w", err)
	}
	return token, exp, nil
}

// Verify checks signature, expiry and that the token was issued for jobID.
func (d *DownloadTokens) Verify(token, jobID string) error {
	if token == "" {
		return ErrTokenMissing
	}

	claims := &downloadClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return d.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil || tkn == nil || !tkn.Valid {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.JobID != jobID {
		return ErrTokenMismatch
	}
	return nil
}
