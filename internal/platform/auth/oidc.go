package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OIDCProvider is the subset of an OpenID Connect discovery document the
// verifier cares about.
type OIDCProvider struct {
	Issuer                  string   `json:"issuer"`
	JWKSURI                 string   `json:"jwks_uri"`
	UserinfoEndpoint        string   `json:"userinfo_endpoint"`
	IDTokenSigningAlgValues []string `json:"id_token_signing_alg_values_supported"`
}

// DiscoverOIDC fetches <issuer>/.well-known/openid-configuration.
func DiscoverOIDC(ctx context.Context, client *http.Client, issuerURL string) (*OIDCProvider, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	discoveryURL := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching OIDC discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OIDC discovery endpoint returned status %d", resp.StatusCode)
	}

	var provider OIDCProvider
	if err := json.NewDecoder(resp.Body).Decode(&provider); err != nil {
		return nil, fmt.Errorf("decoding OIDC discovery document: %w", err)
	}
	if provider.JWKSURI == "" {
		return nil, errors.New("OIDC discovery document missing jwks_uri")
	}
	return &provider, nil
}

// SupportsAlg reports whether the provider advertises alg for ID tokens.
// An empty list is treated as RS256-only.
func (p *OIDCProvider) SupportsAlg(alg string) bool {
	if len(p.IDTokenSigningAlgValues) == 0 {
		return alg == "RS256"
	}
	for _, a := range p.IDTokenSigningAlgValues {
		if a == alg {
			return true
		}
	}
	return false
}

// ResolveJWKSURL returns explicit when set, otherwise the jwks_uri discovered
// from issuer, otherwise <issuer>/.well-known/jwks.json.
func ResolveJWKSURL(ctx context.Context, client *http.Client, issuer, explicit string) (url string, discovered bool) {
	if explicit != "" {
		return explicit, false
	}
	if p, err := DiscoverOIDC(ctx, client, issuer); err == nil {
		return p.JWKSURI, true
	}
	return strings.TrimRight(issuer, "/") + "/.well-known/jwks.json", false
}
