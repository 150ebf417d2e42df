package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultKeyTTL      = time.Hour
	minRefreshInterval = 30 * time.Second
)

var ErrUnknownKey = errors.New("unknown signing key")

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// KeySet resolves token signing keys by key id from a JWKS endpoint. Keys
// are cached for the lifetime advertised by the endpoint's Cache-Control.
type KeySet struct {
	url    string
	client *http.Client
	cache  *cache.Cache

	mu          sync.Mutex
	lastRefresh time.Time
}

func NewKeySet(url string, client *http.Client) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		url:    url,
		client: client,
		cache:  cache.New(defaultKeyTTL, 10*time.Minute),
	}
}

// Key returns the public key for kid, fetching the key set when it is not cached.
func (k *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, found := k.cache.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if key, found := k.cache.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	if time.Since(k.lastRefresh) < minRefreshInterval {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}

	if err := k.refresh(ctx); err != nil {
		return nil, err
	}

	if key, found := k.cache.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
}

func (k *KeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch signing keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch signing keys: status %d", resp.StatusCode)
	}

	var body struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode signing keys: %w", err)
	}

	ttl := maxAge(resp.Header.Get("Cache-Control"))
	for _, jwk := range body.Keys {
		if jwk.Kty != "RSA" || jwk.Kid == "" {
			continue
		}
		pub, err := jwk.publicKey()
		if err != nil {
			return fmt.Errorf("invalid signing key %s: %w", jwk.Kid, err)
		}
		k.cache.Set(jwk.Kid, pub, ttl)
	}

	k.lastRefresh = time.Now()
	return nil
}

func (j jsonWebKey) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, err
	}

	exponent := new(big.Int).SetBytes(e)
	if !exponent.IsInt64() || exponent.Int64() > int64(^uint32(0)>>1) {
		return nil, errors.New("exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exponent.Int64()),
	}, nil
}

func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds <= 0 {
			break
		}
		return time.Duration(seconds) * time.Second
	}
	return defaultKeyTTL
}
