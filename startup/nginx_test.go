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
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nginxTestTemplate = `pid {{.PIDFile}};
resolver {{.Resolver}};
{{range .Ingress.Ports}}listen {{.Port}} proto={{.Proto}};
{{end -}}
{{range .Ingress.Locations}}location {{.Path}} backend={{index .Backends 0}} proto={{.Proto}};
{{end -}}
status_port {{.StatusPort}};
{{range .XFFTrustedProxies}}set_real_ip_from {{.}};
{{end -}}
`

const serverTestTemplate = `rollout_id: {{.RolloutID}}
rollout_strategy: {{.RolloutStrategy}}
{{range $path, $percent := .ServiceConfigs}}config {{$path}} {{$percent}};
{{end -}}
`

func TestWriteNginxConf(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "nginx.conf.template")
	require.NoError(t, os.WriteFile(templatePath, []byte(nginxTestTemplate), 0644))

	opts := NewOptions()
	opts.Template = templatePath
	opts.PIDFile = "/var/run/nginx.pid"
	opts.SSLPort = 8443
	opts.Backend = "grpc://127.0.0.1:8081"

	ingress, err := MakeIngress(opts)
	require.NoError(t, err)

	outPath := filepath.Join(dir, "nginx.conf")
	require.NoError(t, WriteNginxConf(opts, ingress, outPath))

	conf, err := os.ReadFile(outPath)
	require.NoError(t, err)
	expected := `pid /var/run/nginx.pid;
resolver 8.8.8.8;
listen 8443 proto=ssl;
location / backend=127.0.0.1:8081 proto=grpc;
status_port 8090;
set_real_ip_from 0.0.0.0/0;
set_real_ip_from 0::/0;
`
	assert.Equal(t, expected, string(conf))
}

func TestWriteServerConf(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "server.conf.template")
	require.NoError(t, os.WriteFile(templatePath, []byte(serverTestTemplate), 0644))

	opts := NewOptions()
	opts.ServerConfigTemplate = templatePath
	opts.ServerConfigPath = filepath.Join(dir, "server_config.pb.txt")

	configs := &ServiceConfigs{
		Files: map[string]float64{
			"/etc/nginx/endpoints/a.json": 20,
			"/etc/nginx/endpoints/b.json": 80,
		},
		RolloutID:       "2017-05-01r1",
		RolloutStrategy: "managed",
	}
	require.NoError(t, WriteServerConf(opts, configs))

	conf, err := os.ReadFile(opts.ServerConfigPath)
	require.NoError(t, err)
	// Template range over a map iterates in sorted key order.
	expected := `rollout_id: 2017-05-01r1
rollout_strategy: managed
config /etc/nginx/endpoints/a.json 20;
config /etc/nginx/endpoints/b.json 80;
`
	assert.Equal(t, expected, string(conf))
}

func TestWriteNginxConfMissingTemplate(t *testing.T) {
	opts := NewOptions()
	opts.Template = filepath.Join(t.TempDir(), "nope.template")

	ingress, err := MakeIngress(opts)
	require.NoError(t, err)

	err = WriteNginxConf(opts, ingress, filepath.Join(t.TempDir(), "nginx.conf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load the config template")
}

func TestWritePIDFile(t *testing.T) {
	opts := NewOptions()
	opts.PIDFile = filepath.Join(t.TempDir(), "nginx.pid")

	require.NoError(t, WritePIDFile(opts))

	data, err := os.ReadFile(opts.PIDFile)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}
