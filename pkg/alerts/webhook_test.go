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

package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func captureServer(t *testing.T, status int) (*httptest.Server, <-chan []byte) {
	t.Helper()

	bodies := make(chan []byte, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- b

		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, bodies
}

func TestWebhookAlerter_PlainJSON(t *testing.T) {
	srv, bodies := captureServer(t, http.StatusNoContent)

	w := NewWebhookAlerter(WebhookConfig{
		Enabled: true,
		URL:     srv.URL,
		Headers: []Header{{Key: "X-Token", Value: "secret"}},
	}, zap.NewNop())

	err := w.Alert(context.Background(), &WebhookAlert{
		Level:   Error,
		Title:   "prometheus unreachable",
		Message: "connection refused",
		Source:  "prometheus",
	})
	require.NoError(t, err)

	var got WebhookAlert
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, "prometheus", got.Source)
	assert.Equal(t, Error, got.Level)
	assert.NotEmpty(t, got.Timestamp)
}

func TestWebhookAlerter_DiscordTemplate(t *testing.T) {
	srv, bodies := captureServer(t, http.StatusOK)

	w := NewWebhookAlerter(WebhookConfig{
		Enabled:  true,
		URL:      srv.URL,
		Template: "discord",
		Headers:  []Header{{Key: "X-Token", Value: "secret"}},
	}, nil)

	err := w.Alert(context.Background(), &WebhookAlert{
		Level:   Warning,
		Title:   `n8n "recovered"`,
		Message: "ok",
		Source:  "n8n",
		Details: map[string]any{"kind": "timeout"},
	})
	require.NoError(t, err)

	var payload struct {
		Embeds []struct {
			Title  string `json:"title"`
			Color  int    `json:"color"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(<-bodies, &payload))
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, `n8n "recovered"`, payload.Embeds[0].Title)
	assert.Equal(t, DiscordColorYellow, payload.Embeds[0].Color)
	require.Len(t, payload.Embeds[0].Fields, 2)
	assert.Equal(t, "n8n", payload.Embeds[0].Fields[0].Value)
	assert.Equal(t, "kind", payload.Embeds[0].Fields[1].Name)
}

func TestWebhookAlerter_Cooldown(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK)

	w := NewWebhookAlerter(WebhookConfig{
		Enabled:  true,
		URL:      srv.URL,
		Headers:  []Header{{Key: "X-Token", Value: "secret"}},
		Cooldown: time.Minute,
	}, nil)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	require.NoError(t, w.Alert(context.Background(), &WebhookAlert{Title: "a"}))
	assert.ErrorIs(t, w.Alert(context.Background(), &WebhookAlert{Title: "a"}), ErrWebhookCooldown)
	require.NoError(t, w.Alert(context.Background(), &WebhookAlert{Title: "b"}))

	now = now.Add(2 * time.Minute)
	require.NoError(t, w.Alert(context.Background(), &WebhookAlert{Title: "a"}))
}

func TestWebhookAlerter_Errors(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)

	disabled := NewWebhookAlerter(WebhookConfig{URL: srv.URL}, nil)
	assert.ErrorIs(t, disabled.Alert(context.Background(), &WebhookAlert{Title: "x"}), ErrWebhookDisabled)

	failing := NewWebhookAlerter(WebhookConfig{
		Enabled: true,
		URL:     srv.URL,
		Headers: []Header{{Key: "X-Token", Value: "secret"}},
	}, nil)
	assert.ErrorIs(t, failing.Alert(context.Background(), &WebhookAlert{Title: "x"}), errWebhookStatus)

	badTemplate := NewWebhookAlerter(WebhookConfig{Enabled: true, URL: srv.URL, Template: "slack"}, nil)
	assert.ErrorIs(t, badTemplate.Alert(context.Background(), &WebhookAlert{Title: "x"}), errUnknownTemplate)

	invalid := NewWebhookAlerter(WebhookConfig{Enabled: true, URL: srv.URL, Template: `{"a": {{.alert.Title}}}`}, nil)
	assert.ErrorIs(t, invalid.Alert(context.Background(), &WebhookAlert{Title: "x y"}), errInvalidJSON)
}

func TestWebhookConfig_Unmarshal(t *testing.T) {
	var fromJSON WebhookConfig
	require.NoError(t, json.Unmarshal([]byte(`{"enabled":true,"url":"http://x","cooldown":"15m"}`), &fromJSON))
	assert.Equal(t, 15*time.Minute, fromJSON.Cooldown)
	assert.True(t, fromJSON.Enabled)

	var fromYAML WebhookConfig
	require.NoError(t, yaml.Unmarshal([]byte("enabled: true\nurl: http://x\ntemplate: discord\ncooldown: 30s\nheaders:\n  - key: A\n    value: b\n"), &fromYAML))
	assert.Equal(t, 30*time.Second, fromYAML.Cooldown)
	assert.Equal(t, "discord", fromYAML.Template)
	assert.Equal(t, []Header{{Key: "A", Value: "b"}}, fromYAML.Headers)

	var bad WebhookConfig
	assert.Error(t, yaml.Unmarshal([]byte("cooldown: soon\n"), &bad))
}

func TestMulti(t *testing.T) {
	ctrl := gomock.NewController(t)

	on := NewMockAlertService(ctrl)
	off := NewMockAlertService(ctrl)
	cooling := NewMockAlertService(ctrl)

	on.EXPECT().IsEnabled().Return(true).AnyTimes()
	off.EXPECT().IsEnabled().Return(false).AnyTimes()
	cooling.EXPECT().IsEnabled().Return(true).AnyTimes()

	boom := errors.New("boom")
	on.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(boom)
	cooling.EXPECT().Alert(gomock.Any(), gomock.Any()).Return(ErrWebhookCooldown)

	m := NewMulti(on, off, cooling)
	assert.True(t, m.IsEnabled())

	err := m.Alert(context.Background(), &WebhookAlert{Title: "t"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrWebhookCooldown)

	assert.False(t, FromConfig([]WebhookConfig{{URL: "http://x"}}, nil).IsEnabled())
}
