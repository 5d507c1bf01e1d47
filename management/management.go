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

// Package management calls the Google Service Management API to download
// service configurations and rollout descriptions.
package management

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultAddress is the public Service Management API endpoint.
const DefaultAddress = "https://servicemanagement.googleapis.com"

// A Client talks to the Service Management API on behalf of a single
// identity provided by its TokenSource.
type Client struct {
	address string
	tokens  TokenSource
	client  *http.Client
}

// NewClient returns a Client for the management service at address, or
// the public endpoint when address is empty.
func NewClient(address string, tokens TokenSource) *Client {
	if address == "" {
		address = DefaultAddress
	}
	return &Client{
		address: address,
		tokens:  tokens,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// A Rollout describes one service configuration rollout.  Managed
// rollouts carry a traffic percent strategy mapping config IDs to the
// share of traffic they serve.
type Rollout struct {
	RolloutID              string                  `json:"rolloutId"`
	Status                 string                  `json:"status"`
	TrafficPercentStrategy *TrafficPercentStrategy `json:"trafficPercentStrategy"`
}

// TrafficPercentStrategy maps service config IDs to traffic percentages.
type TrafficPercentStrategy struct {
	Percentages map[string]float64 `json:"percentages"`
}

type rolloutsResponse struct {
	Rollouts []*Rollout `json:"rollouts"`
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query the management service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the management response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("management service returned status %d: %s",
			resp.StatusCode, body)
	}
	return body, nil
}

// GetConfig downloads the service configuration identified by service and
// configID.  The configuration is returned as raw JSON so callers can
// write it out without disturbing fields this package does not model.
func (c *Client) GetConfig(ctx context.Context, service, configID string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v1/services/%s/config?configId=%s",
		c.address, url.PathEscape(service), url.QueryEscape(configID))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the service config %q: %w", configID, err)
	}
	return json.RawMessage(body), nil
}

// GetConfigURL downloads a service configuration from an explicit URL,
// bypassing the standard URL template.
func (c *Client) GetConfigURL(ctx context.Context, configURL string) (json.RawMessage, error) {
	body, err := c.get(ctx, configURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the service config from %s: %w", configURL, err)
	}
	return json.RawMessage(body), nil
}

// LatestRollout returns the most recent successful rollout for service.
func (c *Client) LatestRollout(ctx context.Context, service string) (*Rollout, error) {
	u := fmt.Sprintf("%s/v1/services/%s/rollouts?filter=status=SUCCESS",
		c.address, url.PathEscape(service))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rollouts for %q: %w", service, err)
	}

	var resp rolloutsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed rollouts response: %w", err)
	}
	if len(resp.Rollouts) == 0 {
		return nil, fmt.Errorf("service %q has no successful rollouts", service)
	}
	return resp.Rollouts[0], nil
}
