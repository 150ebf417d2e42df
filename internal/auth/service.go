package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v4"
)

const issuerPrefix = "https://securetoken.google.com/"

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingProject = errors.New("identity project id is required")
)

// Principal is the verified identity behind a request.
type Principal struct {
	UID   string
	Email string
}

// Verifier validates an ID token and returns the identity it asserts.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Principal, error)
}

type firebaseClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email,omitempty"`
	AuthTime int64  `json:"auth_time,omitempty"`
}

type firebaseVerifier struct {
	projectID string
	keys      *KeySet
	parser    *jwt.Parser
}

// NewFirebaseVerifier returns a Verifier for ID tokens issued by the identity
// project projectID, signed with keys from keys.
func NewFirebaseVerifier(projectID string, keys *KeySet) (Verifier, error) {
	if projectID == "" {
		return nil, ErrMissingProject
	}
	return &firebaseVerifier{
		projectID: projectID,
		keys:      keys,
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
	}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	claims := &firebaseClaims{}
	token, err := v.parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no key id")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing exp or iat", ErrInvalidToken)
	}
	if !claims.VerifyAudience(v.projectID, true) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrInvalidToken)
	}
	if !claims.VerifyIssuer(issuerPrefix+v.projectID, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if claims.Subject == "" || len(claims.Subject) > 128 {
		return nil, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}

	return &Principal{UID: claims.Subject, Email: claims.Email}, nil
}

// ProjectIDFromCredentials reads the project id from a service account
// credential bundle.
func ProjectIDFromCredentials(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credentials: %w", err)
	}

	var credentials struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &credentials); err != nil {
		return "", fmt.Errorf("failed to parse credentials: %w", err)
	}
	if credentials.ProjectID == "" {
		return "", ErrMissingProject
	}
	return credentials.ProjectID, nil
}
