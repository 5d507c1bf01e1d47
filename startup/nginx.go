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
	"bytes"
	"os"
	"strconv"
	"syscall"
	"text/template"
)

// NginxConfData is the data rendered into the nginx config template.
type NginxConfData struct {
	Ingress              *Ingress
	PIDFile              string
	StatusPort           int
	ServiceAccountKey    string
	Metadata             string
	Resolver             string
	AccessLog            string
	Healthz              string
	XFFTrustedProxies    []string
	TLSMutualAuth        bool
	UnderscoresInHeaders bool
	AllowInvalidHeaders  bool
}

// ServerConfData is the data rendered into the server config template.
type ServerConfData struct {
	ServiceConfigs  map[string]float64
	Management      string
	RolloutID       string
	RolloutStrategy string
}

func renderTemplate(templatePath, outPath string, data interface{}) error {
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return exitErrorf(ExitIO, "failed to load the config template %s: %v", templatePath, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return exitErrorf(ExitIO, "failed to render the config template %s: %v", templatePath, err)
	}

	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return exitErrorf(ExitIO, "failed to save the config %s: %v", outPath, err)
	}
	return nil
}

// WriteNginxConf renders the nginx config template for the ingress.
func WriteNginxConf(opts *Options, ingress *Ingress, outPath string) error {
	return renderTemplate(opts.Template, outPath, &NginxConfData{
		Ingress:              ingress,
		PIDFile:              opts.PIDFile,
		StatusPort:           opts.StatusPort,
		ServiceAccountKey:    opts.ServiceAccountKey,
		Metadata:             opts.Metadata,
		Resolver:             opts.DNS,
		AccessLog:            opts.AccessLog,
		Healthz:              opts.Healthz,
		XFFTrustedProxies:    opts.XFFTrustedProxies(),
		TLSMutualAuth:        opts.TLSMutualAuth,
		UnderscoresInHeaders: opts.UnderscoresInHeaders,
		AllowInvalidHeaders:  opts.AllowInvalidHeaders,
	})
}

// WriteServerConf renders the server config consumed by the proxy
// runtime: the config files with traffic percentages and the rollout
// they came from.
func WriteServerConf(opts *Options, configs *ServiceConfigs) error {
	return renderTemplate(opts.ServerConfigTemplate, opts.ServerConfigPath, &ServerConfData{
		ServiceConfigs:  configs.Files,
		Management:      opts.Management,
		RolloutID:       configs.RolloutID,
		RolloutStrategy: configs.RolloutStrategy,
	})
}

// WritePIDFile records this process's PID for the supervising process.
func WritePIDFile(opts *Options) error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(opts.PIDFile, []byte(pid), 0644); err != nil {
		return exitErrorf(ExitIO, "failed to save the PID file %s: %v", opts.PIDFile, err)
	}
	return nil
}

// EnsureConfigDir creates the config directory if needed.
func EnsureConfigDir(opts *Options) error {
	if err := os.MkdirAll(opts.ConfigDir, 0755); err != nil {
		return exitErrorf(ExitIO, "cannot create the config directory %s: %v", opts.ConfigDir, err)
	}
	return nil
}

// StartNginx replaces the current process with nginx.  It only returns
// on failure.
func StartNginx(opts *Options, nginxConf string) error {
	err := syscall.Exec(opts.Nginx, []string{"nginx", "-p", "/usr", "-c", nginxConf}, os.Environ())
	return exitErrorf(ExitIO, "failed to launch nginx %s: %v", opts.Nginx, err)
}
