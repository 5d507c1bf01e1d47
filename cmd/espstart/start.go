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

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cloudendpoints/espstart/startup"
)

var (
	startOpts  = startup.NewOptions()
	configFile string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Fetch the service config and launch nginx",
	Long: `Fetches the service configuration from the service management service,
renders the nginx configuration for the exposed ports and the backend, and
execs nginx.

The service name and config ID are optional.  With --check_metadata, any
of the service name, config ID, rollout strategy and access token that is
not given is fetched from the metadata service.

For deployments outside Google Cloud, provide a service account
credentials file with --service_account_key or the
GOOGLE_APPLICATION_CREDENTIALS environment variable.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, startCmd} {
		flags := cmd.Flags()

		flags.StringVarP(&startOpts.ServiceAccountKey, "service_account_key", "k", "",
			"service account credentials JSON file")
		flags.StringVarP(&startOpts.Service, "service", "s", "",
			"name of the Endpoints service")
		flags.StringVarP(&startOpts.Version, "version", "v", "",
			"service config ID of the Endpoints service")
		flags.StringVarP(&startOpts.NginxConfig, "nginx_config", "n", "",
			"custom nginx config file; port options are ignored")
		flags.IntVarP(&startOpts.HTTPPort, "http_port", "p", 0,
			"expose a port for HTTP/1.x connections")
		flags.IntVarP(&startOpts.HTTP2Port, "http2_port", "P", 0,
			"expose a port for HTTP/2 connections")
		flags.IntVarP(&startOpts.SSLPort, "ssl_port", "S", 0,
			"expose a port for HTTPS requests")
		flags.IntVarP(&startOpts.StatusPort, "status_port", "N", startup.DefaultStatusPort,
			"status port, serving /endpoints_status over HTTP/1.x")
		flags.StringVarP(&startOpts.Backend, "backend", "a", startup.DefaultBackend,
			"application backend address; use grpc:// or https:// prefixes for gRPC and HTTPS backends")
		flags.BoolVarP(&startOpts.TLSMutualAuth, "tls_mutual_auth", "t", false,
			"enable TLS mutual authentication for HTTPS backends")
		flags.StringVarP(&startOpts.ServiceConfigURL, "service_config_url", "c", "",
			"fetch the service config from this URL instead of the standard one")
		flags.StringVarP(&startOpts.Healthz, "healthz", "z", "",
			"serve a health checking endpoint at this location on the backend ports")
		flags.StringVarP(&startOpts.RolloutStrategy, "rollout_strategy", "R", "",
			`service config rollout strategy, "fixed" or "managed"`)
		flags.StringVarP(&startOpts.XFFTrustedProxyList, "xff_trusted_proxy_list", "x",
			startup.DefaultXFFTrustedProxyList,
			"comma separated list of trusted proxies for the X-Forwarded-For header")
		flags.BoolVar(&startOpts.CheckMetadata, "check_metadata", false,
			"fetch the access token, service name, config ID and rollout strategy from the metadata service")
		flags.BoolVar(&startOpts.UnderscoresInHeaders, "underscores_in_headers", false,
			"allow headers with underscores to pass through")
		flags.BoolVar(&startOpts.AllowInvalidHeaders, "allow_invalid_headers", false,
			"allow invalid headers, as required for all characters legal per RFC 7230")
		flags.StringVar(&configFile, "config", "",
			"YAML file with option defaults; explicit flags win")

		flags.StringVar(&startOpts.ServiceJSONPath, "service_json_path", "", "")
		flags.StringVarP(&startOpts.Metadata, "metadata", "m", "", "")
		flags.StringVarP(&startOpts.Management, "management", "g", "", "")
		flags.StringVar(&startOpts.ConfigDir, "config_dir", startup.DefaultConfigDir, "")
		flags.StringVar(&startOpts.Template, "template", startup.DefaultNginxConfTemplate, "")
		flags.StringVar(&startOpts.ServerConfigTemplate, "server_config_template",
			startup.DefaultServerConfTemplate, "")
		flags.StringVar(&startOpts.Nginx, "nginx", startup.DefaultNginx, "")
		flags.StringVar(&startOpts.DNS, "dns", startup.DefaultDNSResolver, "")
		flags.StringVar(&startOpts.AccessLog, "access_log", startup.DefaultAccessLog, "")
		flags.StringVar(&startOpts.PIDFile, "pid_file", startup.DefaultPIDFile, "")

		// Deployment tuning knobs stay out of the help text.
		for _, name := range []string{
			"service_json_path", "metadata", "management", "config_dir",
			"template", "server_config_template", "nginx", "dns",
			"access_log", "pid_file",
		} {
			_ = flags.MarkHidden(name)
		}
	}

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		set := make(map[string]bool)
		cmd.Flags().Visit(func(f *pflag.Flag) { set[f.Name] = true })
		err := startOpts.LoadConfigFile(configFile, func(name string) bool { return set[name] })
		if err != nil {
			return err
		}
	}
	return startup.Run(cmd.Context(), startOpts, logger)
}
