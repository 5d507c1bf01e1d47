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
	"regexp"
	"strings"
)

// Backend protocol prefixes.
const (
	grpcPrefix  = "grpc://"
	httpPrefix  = "http://"
	httpsPrefix = "https://"
)

// A Port is one listening port of the proxy.
type Port struct {
	Port  int
	Proto string // "http", "http2" or "ssl"
}

// A Location routes a path prefix to a set of backends.
type Location struct {
	Path     string
	Backends []string
	Proto    string // "http", "https" or "grpc"
}

// Ingress describes the nginx server the proxy exposes.
type Ingress struct {
	Ports     []Port
	Host      string
	Locations []Location
}

var portSuffix = regexp.MustCompile(`:[0-9]+$`)

// parseBackend splits a backend address into its protocol and address.
// HTTPS backends without an explicit port default to 443; a bare address
// is an HTTP/1.x backend.
func parseBackend(backend string) (proto, address string) {
	switch {
	case strings.HasPrefix(backend, grpcPrefix):
		return "grpc", backend[len(grpcPrefix):]
	case strings.HasPrefix(backend, httpPrefix):
		return "http", backend[len(httpPrefix):]
	case strings.HasPrefix(backend, httpsPrefix):
		address = backend[len(httpsPrefix):]
		if !portSuffix.MatchString(address) {
			address += ":443"
		}
		return "https", address
	default:
		return "http", backend
	}
}

// MakeIngress builds the ingress description from the port and backend
// options.  When no port option is given, the default HTTP/1.x port is
// exposed.  A port used more than once is a validation error.
func MakeIngress(opts *Options) (*Ingress, error) {
	if opts.HTTPPort == 0 && opts.HTTP2Port == 0 && opts.SSLPort == 0 {
		opts.HTTPPort = DefaultHTTPPort
	}

	counts := make(map[int]int)
	for _, port := range []int{opts.HTTPPort, opts.HTTP2Port, opts.SSLPort, opts.StatusPort} {
		if port != 0 {
			counts[port]++
		}
	}
	for port, count := range counts {
		if count > 1 {
			return nil, exitErrorf(ExitValidation, "port %d is used more than once", port)
		}
	}

	var ports []Port
	if opts.HTTPPort != 0 {
		ports = append(ports, Port{opts.HTTPPort, "http"})
	}
	if opts.HTTP2Port != 0 {
		ports = append(ports, Port{opts.HTTP2Port, "http2"})
	}
	if opts.SSLPort != 0 {
		ports = append(ports, Port{opts.SSLPort, "ssl"})
	}

	proto, address := parseBackend(opts.Backend)

	return &Ingress{
		Ports: ports,
		Host:  `""`,
		Locations: []Location{{
			Path:     "/",
			Backends: []string{address},
			Proto:    proto,
		}},
	}, nil
}
