package meli

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/estoquel/restocker/internal/apperrors"
)

// How long an issued state survives before the callback must present it
const stateTTL = 10 * time.Minute

// StateSigner issues and checks the signed OAuth state parameter that ties a
// callback to an authorization redirect we produced ourselves.
type StateSigner struct {
	// Secret key to sign state payload
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod
}

func NewStateSigner(key string) *StateSigner {
	return &StateSigner{
		key: key,
		alg: jwt.SigningMethodHS256,
	}
}

func (s *StateSigner) Sign() (string, error) {
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(
		s.alg,
		jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	)

	state, err := token.SignedString([]byte(s.key))
	if err != nil {
		return "", fmt.Errorf("error while signing state. Err: %w", err)
	}

	return state, nil
}

func (s *StateSigner) Verify(state string) error {
	token, err := jwt.Parse(
		state,
		func(t *jwt.Token) (any, error) { return []byte(s.key), nil },
		jwt.WithValidMethods([]string{s.alg.Alg()}),
	)

	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", apperrors.ErrStateInvalid, err)
	}

	return nil
}
