package credentials

import (
	"errors"

	"relay-service/internal/models"
)

var (
	ErrMissingCredential = errors.New("authentication required")
	ErrUnknownCredential = errors.New("invalid credential")
)

// Map is the static bearer-token to participant mapping. It holds exactly
// two entries and is read-only after construction.
type Map struct {
	tokens map[string]models.Participant
}

// NewMap builds the credential map from the two configured tokens.
func NewMap(tokenA, tokenB string) (*Map, error) {
	if tokenA == "" || tokenB == "" {
		return nil, errors.New("both participant tokens must be set")
	}
	if tokenA == tokenB {
		return nil, errors.New("participant tokens must differ")
	}
	return &Map{
		tokens: map[string]models.Participant{
			tokenA: models.ParticipantA,
			tokenB: models.ParticipantB,
		},
	}, nil
}

// Lookup resolves a bearer token to its participant. Pure lookup, no side
// effects.
func (m *Map) Lookup(token string) (models.Participant, error) {
	if token == "" {
		return "", ErrMissingCredential
	}
	p, ok := m.tokens[token]
	if !ok {
		return "", ErrUnknownCredential
	}
	return p, nil
}
