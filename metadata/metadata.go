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

// Package metadata reads instance attributes and access tokens from the
// GCE metadata service.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAddress is the well-known link-local metadata service address.
const DefaultAddress = "http://169.254.169.254"

const (
	tokenPath           = "/computeMetadata/v1/instance/service-accounts/default/token"
	serviceNamePath     = "/computeMetadata/v1/instance/attributes/endpoints-service-name"
	configIDPath        = "/computeMetadata/v1/instance/attributes/endpoints-service-config-id"
	rolloutStrategyPath = "/computeMetadata/v1/instance/attributes/endpoints-rollout-strategy"
)

// A Client fetches values from a metadata service.  The zero value is not
// usable; call NewClient.
type Client struct {
	address string
	client  *http.Client
}

// NewClient returns a metadata client for the service at address.  An
// empty address selects the standard GCE metadata address.
func NewClient(address string) *Client {
	if address == "" {
		address = DefaultAddress
	}
	return &Client{
		address: strings.TrimSuffix(address, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// AccessToken is an OAuth2 access token minted for the instance's default
// service account.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.address+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query the metadata service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service returned status %d for %s",
			resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the metadata response: %w", err)
	}
	return body, nil
}

// Token fetches an access token for the instance's default service
// account.
func (c *Client) Token(ctx context.Context) (*AccessToken, error) {
	body, err := c.get(ctx, tokenPath)
	if err != nil {
		return nil, err
	}
	var token AccessToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("malformed access token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("metadata service returned an empty access token")
	}
	return &token, nil
}

// ServiceName fetches the endpoints-service-name instance attribute.
func (c *Client) ServiceName(ctx context.Context) (string, error) {
	body, err := c.get(ctx, serviceNamePath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ConfigID fetches the endpoints-service-config-id instance attribute.
func (c *Client) ConfigID(ctx context.Context) (string, error) {
	body, err := c.get(ctx, configIDPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// RolloutStrategy fetches the endpoints-rollout-strategy instance
// attribute.
func (c *Client) RolloutStrategy(ctx context.Context) (string, error) {
	body, err := c.get(ctx, rolloutStrategyPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
