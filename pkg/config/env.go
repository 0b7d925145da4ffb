/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// applyEnv overrides base addresses and paths from the environment.
func applyEnv(cfg *Config, lookup LookupFunc) {
	overrides := map[string]*string{
		"OPSDECK_LISTEN_ADDR":       &cfg.ListenAddr,
		"OPSDECK_GRPC_ADDR":         &cfg.GRPCAddr,
		"OPSDECK_DB_PATH":           &cfg.DBPath,
		"OPSDECK_LOG_LEVEL":         &cfg.Logging.Level,
		"OPSDECK_PROMETHEUS_URL":    &cfg.Sources.Prometheus.BaseURL,
		"OPSDECK_ALERTMANAGER_URL":  &cfg.Sources.Alertmanager.BaseURL,
		"OPSDECK_N8N_URL":           &cfg.Sources.N8N.BaseURL,
		"OPSDECK_HOMEASSISTANT_URL": &cfg.Sources.HomeAssistant.BaseURL,
		"OPSDECK_IMAGEGEN_URL":      &cfg.Sources.ImageGen.BaseURL,
		"OPSDECK_IMAGEGEN_STREAM":   &cfg.Sources.ImageGen.StreamURL,
		"OPSDECK_GRAFANA_URL":       &cfg.Sources.Grafana.BaseURL,
		"OPSDECK_EDGES_FILE":        &cfg.Graph.EdgesFile,
	}

	for key, dst := range overrides {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
}
