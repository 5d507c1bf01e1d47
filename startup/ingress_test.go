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

package startup

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	testCases := []struct {
		backend string
		proto   string
		address string
	}{
		{"127.0.0.1:8081", "http", "127.0.0.1:8081"},
		{"http://127.0.0.1:8081", "http", "127.0.0.1:8081"},
		{"grpc://127.0.0.1:8081", "grpc", "127.0.0.1:8081"},
		{"https://127.0.0.1:8081", "https", "127.0.0.1:8081"},
		{"https://backend.example.com", "https", "backend.example.com:443"},
		{"https://backend.example.com:9000", "https", "backend.example.com:9000"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.backend, func(t *testing.T) {
			proto, address := parseBackend(testCase.backend)
			assert.Equal(t, testCase.proto, proto)
			assert.Equal(t, testCase.address, address)
		})
	}
}

func TestMakeIngressDefaultPort(t *testing.T) {
	opts := NewOptions()

	ingress, err := MakeIngress(opts)
	require.NoError(t, err)

	expected := &Ingress{
		Ports: []Port{{DefaultHTTPPort, "http"}},
		Host:  `""`,
		Locations: []Location{{
			Path:     "/",
			Backends: []string{DefaultBackend},
			Proto:    "http",
		}},
	}
	if diff := cmp.Diff(expected, ingress); diff != "" {
		t.Errorf("ingress mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeIngressAllPorts(t *testing.T) {
	opts := NewOptions()
	opts.HTTPPort = 8080
	opts.HTTP2Port = 8082
	opts.SSLPort = 8443

	ingress, err := MakeIngress(opts)
	require.NoError(t, err)

	expected := []Port{{8080, "http"}, {8082, "http2"}, {8443, "ssl"}}
	assert.Equal(t, expected, ingress.Ports)
}

func TestMakeIngressPortCollision(t *testing.T) {
	opts := NewOptions()
	opts.HTTPPort = 8090 // collides with the default status port

	_, err := MakeIngress(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 8090 is used more than once")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitValidation, exitErr.Code)
}

func TestMakeIngressExplicitPortOnly(t *testing.T) {
	opts := NewOptions()
	opts.HTTP2Port = 8082

	ingress, err := MakeIngress(opts)
	require.NoError(t, err)

	// Specifying any port disables the implicit HTTP/1.x port.
	assert.Equal(t, []Port{{8082, "http2"}}, ingress.Ports)
}
