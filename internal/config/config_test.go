package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WHATSAPP_TOKEN", "tok")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "1555000111")
	t.Setenv("META_VERIFY_TOKEN", "verify")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.BaseURL)
	assert.Equal(t, "v20.0", cfg.WhatsApp.APIVersion)
	assert.True(t, cfg.WhatsApp.MarkAsRead)
	assert.Equal(t, "0 9 * * *", cfg.Broadcast.CronSchedule)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_PORT", "9999")
	t.Setenv("WHATSAPP_MARK_AS_READ", "false")
	t.Setenv("BROADCAST_RECIPIENT", "221771234567")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.False(t, cfg.WhatsApp.MarkAsRead)
	assert.Equal(t, "221771234567", cfg.Broadcast.Recipient)
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")
	t.Setenv("META_VERIFY_TOKEN", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHATSAPP_TOKEN")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: "8080"},
		WhatsApp: WhatsAppConfig{Token: "t", NumberID: "n", VerifyToken: "v", BaseURL: "b", APIVersion: "a"},
		Broadcast: BroadcastConfig{
			CronSchedule: "0 9 * * *",
		},
	}
	require.NoError(t, cfg.Validate())

	cfg.WhatsApp.NumberID = ""
	assert.Error(t, cfg.Validate())
}
