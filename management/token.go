// Copyright 2017 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package management

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cloudendpoints/espstart/metadata"
)

// A TokenSource supplies OAuth2 access tokens for management API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// MetadataTokenSource mints tokens through the GCE metadata service.
type MetadataTokenSource struct {
	Client *metadata.Client
}

func (s *MetadataTokenSource) Token(ctx context.Context) (string, error) {
	token, err := s.Client.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	tokenScope    = "https://www.googleapis.com/auth/service.management.readonly"
	jwtGrantType  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// KeyTokenSource exchanges a signed service account assertion for an
// access token at the OAuth2 token endpoint.  Tokens are cached until
// shortly before expiry.
type KeyTokenSource struct {
	email    string
	key      any
	tokenURI string
	client   *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewKeyTokenSource loads a service account credentials JSON file.
func NewKeyTokenSource(path string) (*KeyTokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the service account key: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("malformed service account key %s: %w", path, err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account key %s is missing client_email or private_key", path)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse the service account private key: %w", err)
	}

	tokenURI := key.TokenURI
	if tokenURI == "" {
		tokenURI = tokenEndpoint
	}

	return &KeyTokenSource{
		email:    key.ClientEmail,
		key:      privateKey,
		tokenURI: tokenURI,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *KeyTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiry) {
		return s.token, nil
	}

	now := time.Now()
	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   s.email,
		"scope": tokenScope,
		"aud":   s.tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	signed, err := assertion.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign the token assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {jwtGrantType},
		"assertion":  {signed},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange the token assertion: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("malformed token endpoint response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	s.token = body.AccessToken
	s.expiry = now.Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return s.token, nil
}

// StaticTokenSource returns the same token for every call.  Useful in
// tests and when the caller already holds a token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}
