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

// Package startup configures nginx and fetches service configurations
// for an Endpoints proxy instance.
package startup

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exit codes reported by the start flow, in addition to nginx's own.
const (
	ExitFetch      = 1 // failed to fetch a service config
	ExitValidation = 2 // validation error
	ExitIO         = 3 // I/O error
	ExitArgs       = 4 // argument parsing error
)

// An ExitError carries the process exit code for a start-flow failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitErrorf(code int, format string, args ...interface{}) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// Defaults mirroring the stock ESP container layout.
const (
	DefaultNginx               = "/usr/sbin/nginx"
	DefaultNginxConfTemplate   = "/etc/nginx/nginx-auto.conf.template"
	DefaultServerConfTemplate  = "/etc/nginx/server-auto.conf.template"
	DefaultServerConf          = "/etc/nginx/server_config.pb.txt"
	DefaultConfigDir           = "/etc/nginx/endpoints"
	DefaultDNSResolver         = "8.8.8.8"
	DefaultHTTPPort            = 8080
	DefaultStatusPort          = 8090
	DefaultBackend             = "127.0.0.1:8081"
	DefaultRolloutStrategy     = "fixed"
	DefaultXFFTrustedProxyList = "0.0.0.0/0, 0::/0"
	DefaultPIDFile             = "/var/run/nginx.pid"
	DefaultAccessLog           = "/dev/stdout"
)

// CredentialsEnv names the environment variable holding the path of a
// service account credentials JSON file.
const CredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

// Options collects everything the start flow needs.  Zero port values
// mean "not exposed"; NewOptions fills in the remaining defaults.
type Options struct {
	ServiceAccountKey string `yaml:"service_account_key"`
	Service           string `yaml:"service"`
	Version           string `yaml:"version"`
	NginxConfig       string `yaml:"nginx_config"`

	HTTPPort   int `yaml:"http_port"`
	HTTP2Port  int `yaml:"http2_port"`
	SSLPort    int `yaml:"ssl_port"`
	StatusPort int `yaml:"status_port"`

	Backend          string `yaml:"backend"`
	TLSMutualAuth    bool   `yaml:"tls_mutual_auth"`
	ServiceConfigURL string `yaml:"service_config_url"`
	Healthz          string `yaml:"healthz"`
	RolloutStrategy  string `yaml:"rollout_strategy"`

	XFFTrustedProxyList  string `yaml:"xff_trusted_proxy_list"`
	CheckMetadata        bool   `yaml:"check_metadata"`
	UnderscoresInHeaders bool   `yaml:"underscores_in_headers"`
	AllowInvalidHeaders  bool   `yaml:"allow_invalid_headers"`

	ServiceJSONPath      string `yaml:"service_json_path"`
	Metadata             string `yaml:"metadata"`
	Management           string `yaml:"management"`
	ConfigDir            string `yaml:"config_dir"`
	Template             string `yaml:"template"`
	ServerConfigTemplate string `yaml:"server_config_template"`
	ServerConfigPath     string `yaml:"server_config_path"`
	Nginx                string `yaml:"nginx"`
	DNS                  string `yaml:"dns"`
	AccessLog            string `yaml:"access_log"`
	PIDFile              string `yaml:"pid_file"`
}

// NewOptions returns Options populated with the stock defaults.
func NewOptions() *Options {
	return &Options{
		StatusPort:           DefaultStatusPort,
		Backend:              DefaultBackend,
		XFFTrustedProxyList:  DefaultXFFTrustedProxyList,
		ConfigDir:            DefaultConfigDir,
		Template:             DefaultNginxConfTemplate,
		ServerConfigTemplate: DefaultServerConfTemplate,
		ServerConfigPath:     DefaultServerConf,
		Nginx:                DefaultNginx,
		DNS:                  DefaultDNSResolver,
		AccessLog:            DefaultAccessLog,
		PIDFile:              DefaultPIDFile,
	}
}

// LoadConfigFile layers a YAML defaults file under the options.  The
// file overrides the stock defaults; flags the user explicitly set,
// reported by isSet under their flag names, override the file.  A nil
// isSet means no flags were set.
func (o *Options) LoadConfigFile(path string, isSet func(name string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return exitErrorf(ExitIO, "failed to read the config file %s: %v", path, err)
	}

	merged := NewOptions()
	if err := yaml.Unmarshal(data, merged); err != nil {
		return exitErrorf(ExitArgs, "malformed config file %s: %v", path, err)
	}

	if isSet != nil {
		flags := *o
		for name, apply := range map[string]func(){
			"service_account_key":    func() { merged.ServiceAccountKey = flags.ServiceAccountKey },
			"service":                func() { merged.Service = flags.Service },
			"version":                func() { merged.Version = flags.Version },
			"nginx_config":           func() { merged.NginxConfig = flags.NginxConfig },
			"http_port":              func() { merged.HTTPPort = flags.HTTPPort },
			"http2_port":             func() { merged.HTTP2Port = flags.HTTP2Port },
			"ssl_port":               func() { merged.SSLPort = flags.SSLPort },
			"status_port":            func() { merged.StatusPort = flags.StatusPort },
			"backend":                func() { merged.Backend = flags.Backend },
			"tls_mutual_auth":        func() { merged.TLSMutualAuth = flags.TLSMutualAuth },
			"service_config_url":     func() { merged.ServiceConfigURL = flags.ServiceConfigURL },
			"healthz":                func() { merged.Healthz = flags.Healthz },
			"rollout_strategy":       func() { merged.RolloutStrategy = flags.RolloutStrategy },
			"xff_trusted_proxy_list": func() { merged.XFFTrustedProxyList = flags.XFFTrustedProxyList },
			"check_metadata":         func() { merged.CheckMetadata = flags.CheckMetadata },
			"underscores_in_headers": func() { merged.UnderscoresInHeaders = flags.UnderscoresInHeaders },
			"allow_invalid_headers":  func() { merged.AllowInvalidHeaders = flags.AllowInvalidHeaders },
			"service_json_path":      func() { merged.ServiceJSONPath = flags.ServiceJSONPath },
			"metadata":               func() { merged.Metadata = flags.Metadata },
			"management":             func() { merged.Management = flags.Management },
			"config_dir":             func() { merged.ConfigDir = flags.ConfigDir },
			"template":               func() { merged.Template = flags.Template },
			"server_config_template": func() { merged.ServerConfigTemplate = flags.ServerConfigTemplate },
			"nginx":                  func() { merged.Nginx = flags.Nginx },
			"dns":                    func() { merged.DNS = flags.DNS },
			"access_log":             func() { merged.AccessLog = flags.AccessLog },
			"pid_file":               func() { merged.PIDFile = flags.PIDFile },
		} {
			if isSet(name) {
				apply()
			}
		}
	}

	*o = *merged
	return nil
}

// Validate checks option combinations that argument parsing cannot.
func (o *Options) Validate() error {
	switch o.RolloutStrategy {
	case "", "fixed", "managed":
	default:
		return exitErrorf(ExitArgs,
			"invalid rollout strategy %q, expected \"fixed\" or \"managed\"", o.RolloutStrategy)
	}
	if o.ServiceJSONPath != "" && o.ServiceConfigURL != "" {
		return exitErrorf(ExitArgs,
			"--service_json_path and --service_config_url are mutually exclusive")
	}
	return nil
}

// XFFTrustedProxies splits the configured trusted proxy list into
// individual entries, dropping blanks.
func (o *Options) XFFTrustedProxies() []string {
	var proxies []string
	for _, proxy := range strings.Split(o.XFFTrustedProxyList, ",") {
		if proxy = strings.TrimSpace(proxy); proxy != "" {
			proxies = append(proxies, proxy)
		}
	}
	return proxies
}
