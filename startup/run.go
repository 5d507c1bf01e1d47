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
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Run executes the full start flow: write the PID file, acquire service
// configs, render the server and nginx configs, and hand the process
// over to nginx.  It only returns on failure.
func Run(ctx context.Context, opts *Options, logger *zap.Logger) error {
	if opts.ServiceAccountKey == "" {
		opts.ServiceAccountKey = os.Getenv(CredentialsEnv)
	}

	if err := opts.Validate(); err != nil {
		return err
	}

	// The supervising process reads the PID file, so it is written
	// before anything that can block.
	if err := WritePIDFile(opts); err != nil {
		return err
	}

	var configs *ServiceConfigs
	if opts.ServiceJSONPath != "" {
		if _, err := os.Stat(opts.ServiceJSONPath); err != nil {
			return exitErrorf(ExitIO, "cannot find the specified file %s", opts.ServiceJSONPath)
		}
		configs = &ServiceConfigs{
			Files:           map[string]float64{opts.ServiceJSONPath: 100},
			RolloutStrategy: opts.RolloutStrategy,
		}
	} else {
		if err := EnsureConfigDir(opts); err != nil {
			return err
		}
		fetcher, err := NewFetcher(opts, logger)
		if err != nil {
			return err
		}
		configs, err = fetcher.Fetch(ctx)
		if err != nil {
			return err
		}
	}

	if err := WriteServerConf(opts, configs); err != nil {
		return err
	}

	nginxConf := opts.NginxConfig
	if nginxConf == "" {
		ingress, err := MakeIngress(opts)
		if err != nil {
			return err
		}
		nginxConf = filepath.Join(opts.ConfigDir, "nginx.conf")
		if err := EnsureConfigDir(opts); err != nil {
			return err
		}
		if err := WriteNginxConf(opts, ingress, nginxConf); err != nil {
			return err
		}
	}

	logger.Info("starting nginx", zap.String("config", nginxConf))
	return StartNginx(opts, nginxConf)
}
