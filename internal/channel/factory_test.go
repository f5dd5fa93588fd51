package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/makt28/netcanary/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFactory_BuildWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := config.ChannelConfig{
		Name:            "hook",
		Type:            config.TypeWebhook,
		CredentialsFile: writeFile(t, "hook.json", `{"token": "abc"}`),
		Webhook:         config.WebhookConfig{URL: srv.URL},
	}
	cfg.ApplyDefaults()

	ch, err := NewFactory(discardLogger(), srv.Client(), nil).Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	wh, ok := ch.(*Webhook)
	if !ok {
		t.Fatalf("Build() returned %T", ch)
	}
	if wh.Token != "abc" || wh.Method != http.MethodPost {
		t.Errorf("webhook = %+v", wh)
	}
}

func TestFactory_BuildFailures(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ChannelConfig
		wantErr string
	}{
		{
			name: "malformed credentials",
			cfg: config.ChannelConfig{Name: "email", Type: config.TypeEmail,
				CredentialsFile: writeFile(t, "bad.json", `{"username": "a", "password": `),
				Email:           config.EmailConfig{Address: "a@example.com", SMTPServer: "smtp.example.com"}},
			wantErr: "parse credentials",
		},
		{
			name: "missing credentials file",
			cfg: config.ChannelConfig{Name: "discord", Type: config.TypeDiscord,
				CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
				Discord:         config.DiscordConfig{ChannelID: "1"}},
			wantErr: "could not read credentials",
		},
		{
			name: "credentials without token",
			cfg: config.ChannelConfig{Name: "discord", Type: config.TypeDiscord,
				CredentialsFile: writeFile(t, "d.json", `{"username": "x"}`),
				Discord:         config.DiscordConfig{ChannelID: "1"}},
			wantErr: "token is required",
		},
		{
			name:    "invalid config",
			cfg:     config.ChannelConfig{Name: "pager", Type: "pager"},
			wantErr: "type must be",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			ch, err := NewFactory(discardLogger(), nil, nil).Build(context.Background(), cfg)
			if ch != nil {
				t.Errorf("Build() returned channel %T on failure", ch)
			}
			var setupErr *SetupError
			if !errors.As(err, &setupErr) {
				t.Fatalf("Build() error = %v, want *SetupError", err)
			}
			if setupErr.Channel != cfg.Name {
				t.Errorf("SetupError.Channel = %q, want %q", setupErr.Channel, cfg.Name)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
