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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudendpoints/espstart/management"
	"github.com/cloudendpoints/espstart/metadata"
)

// ServiceConfigs is the outcome of service config acquisition: the
// config files on disk with the traffic percentage each one serves, plus
// the rollout they came from when the managed strategy is in use.
type ServiceConfigs struct {
	Files           map[string]float64
	RolloutID       string
	RolloutStrategy string
}

// A Fetcher downloads service configurations into the config directory.
type Fetcher struct {
	opts   *Options
	meta   *metadata.Client
	mgmt   *management.Client
	logger *zap.Logger
}

// NewFetcher builds a Fetcher from the options.  The access token comes
// from the service account key when one is configured, and from the
// metadata service otherwise.
func NewFetcher(opts *Options, logger *zap.Logger) (*Fetcher, error) {
	meta := metadata.NewClient(opts.Metadata)

	var tokens management.TokenSource
	if opts.ServiceAccountKey != "" {
		source, err := management.NewKeyTokenSource(opts.ServiceAccountKey)
		if err != nil {
			return nil, &ExitError{Code: ExitFetch, Err: err}
		}
		tokens = source
	} else {
		logger.Info("fetching access tokens from the metadata service")
		tokens = &management.MetadataTokenSource{Client: meta}
	}

	return &Fetcher{
		opts:   opts,
		meta:   meta,
		mgmt:   management.NewClient(opts.Management, tokens),
		logger: logger,
	}, nil
}

// configFilename derives a stable file name for a service config ID.
// Config IDs may contain characters that are not valid in file names.
func configFilename(configID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(configID)).String()
}

// saveConfig writes a service config with sorted keys and two-space
// indentation so repeated fetches produce identical files.
func saveConfig(path string, config json.RawMessage) error {
	var parsed interface{}
	if err := json.Unmarshal(config, &parsed); err != nil {
		return exitErrorf(ExitFetch, "malformed service config: %v", err)
	}
	data, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return exitErrorf(ExitFetch, "failed to encode the service config: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return exitErrorf(ExitIO, "failed to save the service config: %v", err)
	}
	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, configID, filename string) (string, error) {
	f.logger.Info("fetching the service configuration from the service management service",
		zap.String("service", f.opts.Service),
		zap.String("config_id", configID))

	config, err := f.mgmt.GetConfig(ctx, f.opts.Service, configID)
	if err != nil {
		return "", &ExitError{Code: ExitFetch, Err: err}
	}

	path := filepath.Join(f.opts.ConfigDir, filename)
	if err := saveConfig(path, config); err != nil {
		return "", err
	}
	return path, nil
}

// fetchRollout downloads every config in the latest successful rollout's
// traffic percent strategy, concurrently.
func (f *Fetcher) fetchRollout(ctx context.Context) (*ServiceConfigs, error) {
	f.logger.Info("fetching the service config ID from the rollouts service")

	rollout, err := f.mgmt.LatestRollout(ctx, f.opts.Service)
	if err != nil {
		return nil, &ExitError{Code: ExitFetch, Err: err}
	}
	if rollout.TrafficPercentStrategy == nil || len(rollout.TrafficPercentStrategy.Percentages) == 0 {
		return nil, exitErrorf(ExitFetch,
			"rollout %q has no traffic percent strategy", rollout.RolloutID)
	}

	configs := &ServiceConfigs{
		Files:     make(map[string]float64),
		RolloutID: rollout.RolloutID,
	}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for configID, percentage := range rollout.TrafficPercentStrategy.Percentages {
		configID, percentage := configID, percentage
		group.Go(func() error {
			path, err := f.fetchOne(ctx, configID, configFilename(configID))
			if err != nil {
				return err
			}
			mu.Lock()
			configs.Files[path] = percentage
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return configs, nil
}

// Fetch acquires the service configs per the configured strategy and
// places them in the config directory.
func (f *Fetcher) Fetch(ctx context.Context) (*ServiceConfigs, error) {
	opts := f.opts

	if opts.ServiceConfigURL != "" {
		// The file is named service.json when an explicit URL or
		// config ID is given, for backward compatibility.
		config, err := f.mgmt.GetConfigURL(ctx, opts.ServiceConfigURL)
		if err != nil {
			return nil, &ExitError{Code: ExitFetch, Err: err}
		}
		path := filepath.Join(opts.ConfigDir, "service.json")
		if err := saveConfig(path, config); err != nil {
			return nil, err
		}
		return &ServiceConfigs{Files: map[string]float64{path: 100}}, nil
	}

	if opts.Service == "" && opts.CheckMetadata {
		f.logger.Info("fetching the service name from the metadata service")
		name, err := f.meta.ServiceName(ctx)
		if err != nil {
			return nil, exitErrorf(ExitIO,
				"unable to fetch the service name from the metadata service: %v", err)
		}
		opts.Service = name
	}
	if opts.Service == "" {
		return nil, exitErrorf(ExitIO, "service name is not specified")
	}

	if opts.RolloutStrategy == "" && opts.CheckMetadata {
		f.logger.Info("fetching the rollout strategy from the metadata service")
		strategy, err := f.meta.RolloutStrategy(ctx)
		if err == nil {
			opts.RolloutStrategy = strategy
		}
	}
	if opts.RolloutStrategy == "" {
		opts.RolloutStrategy = DefaultRolloutStrategy
	}

	if opts.Version == "" && opts.CheckMetadata {
		f.logger.Info("fetching the service config ID from the metadata service")
		version, err := f.meta.ConfigID(ctx)
		if err == nil {
			opts.Version = version
		}
	}

	if opts.Version == "" {
		configs, err := f.fetchRollout(ctx)
		if err != nil {
			return nil, err
		}
		configs.RolloutStrategy = opts.RolloutStrategy
		return configs, nil
	}

	path, err := f.fetchOne(ctx, opts.Version, "service.json")
	if err != nil {
		return nil, err
	}
	return &ServiceConfigs{
		Files:           map[string]float64{path: 100},
		RolloutStrategy: opts.RolloutStrategy,
	}, nil
}
