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

package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			http.Error(w, "missing Metadata-Flavor header", http.StatusForbidden)
			return
		}
		body, ok := responses[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestToken(t *testing.T) {
	server := newTestServer(t, map[string]string{
		tokenPath: `{"access_token":"ya29.token","expires_in":3599,"token_type":"Bearer"}`,
	})

	token, err := NewClient(server.URL).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya29.token", token.AccessToken)
	assert.Equal(t, 3599, token.ExpiresIn)
	assert.Equal(t, "Bearer", token.TokenType)
}

func TestTokenEmpty(t *testing.T) {
	server := newTestServer(t, map[string]string{
		tokenPath: `{}`,
	})

	_, err := NewClient(server.URL).Token(context.Background())
	assert.ErrorContains(t, err, "empty access token")
}

func TestAttributes(t *testing.T) {
	server := newTestServer(t, map[string]string{
		serviceNamePath:     "bookstore.endpoints.example.cloud.goog\n",
		configIDPath:        "2017-05-01r0",
		rolloutStrategyPath: "managed",
	})

	client := NewClient(server.URL)
	ctx := context.Background()

	name, err := client.ServiceName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bookstore.endpoints.example.cloud.goog", name)

	configID, err := client.ConfigID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2017-05-01r0", configID)

	strategy, err := client.RolloutStrategy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "managed", strategy)
}

func TestNotFound(t *testing.T) {
	server := newTestServer(t, nil)

	_, err := NewClient(server.URL).ServiceName(context.Background())
	assert.ErrorContains(t, err, "status 404")
}
