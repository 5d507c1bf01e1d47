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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/services/bookstore.example.com/config", r.URL.Path)
		assert.Equal(t, "2017-05-01r0", r.URL.Query().Get("configId"))
		w.Write([]byte(`{"name":"bookstore.example.com","id":"2017-05-01r0"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticTokenSource("test-token"))
	config, err := client.GetConfig(context.Background(), "bookstore.example.com", "2017-05-01r0")
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(config, &parsed))
	assert.Equal(t, "bookstore.example.com", parsed["name"])
}

func TestGetConfigError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticTokenSource("test-token"))
	_, err := client.GetConfig(context.Background(), "bookstore.example.com", "2017-05-01r0")
	assert.ErrorContains(t, err, "status 403")
}

func TestLatestRollout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/services/bookstore.example.com/rollouts", r.URL.Path)
		assert.Equal(t, "status=SUCCESS", r.URL.Query().Get("filter"))
		w.Write([]byte(`{
			"rollouts": [
				{
					"rolloutId": "2017-05-01r1",
					"status": "SUCCESS",
					"trafficPercentStrategy": {
						"percentages": {"2017-05-01r0": 20, "2017-04-01r3": 80}
					}
				},
				{"rolloutId": "2017-04-01r3", "status": "SUCCESS"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticTokenSource("test-token"))
	rollout, err := client.LatestRollout(context.Background(), "bookstore.example.com")
	require.NoError(t, err)

	expected := &Rollout{
		RolloutID: "2017-05-01r1",
		Status:    "SUCCESS",
		TrafficPercentStrategy: &TrafficPercentStrategy{
			Percentages: map[string]float64{
				"2017-05-01r0": 20,
				"2017-04-01r3": 80,
			},
		},
	}
	if diff := cmp.Diff(expected, rollout); diff != "" {
		t.Errorf("rollout mismatch (-want +got):\n%s", diff)
	}
}

func TestLatestRolloutEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rollouts": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, StaticTokenSource("test-token"))
	_, err := client.LatestRollout(context.Background(), "bookstore.example.com")
	assert.ErrorContains(t, err, "no successful rollouts")
}
