package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("signing-key"))

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("CHAT_SIGNING_SECRET", secret)

		cfg, err := Load()
		assert.NoError(t, err)
		assert.Equal(t, "localhost:8000", cfg.ListenAddr)
		assert.Equal(t, 5*time.Second, cfg.SendTimeout)
		assert.Equal(t, []byte("signing-key"), cfg.SigningKey)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("CHAT_SIGNING_SECRET", secret)
		t.Setenv("CHAT_LISTEN_ADDR", "0.0.0.0:9000")
		t.Setenv("CHAT_SEND_TIMEOUT", "250ms")
		t.Setenv("CHAT_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

		cfg, err := Load()
		assert.NoError(t, err)
		assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
		assert.Equal(t, 250*time.Millisecond, cfg.SendTimeout)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	})

	t.Run("missing signing secret", func(t *testing.T) {
		t.Setenv("CHAT_SIGNING_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("signing secret must be base64", func(t *testing.T) {
		t.Setenv("CHAT_SIGNING_SECRET", "not base64 !!!")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("send timeout must be positive", func(t *testing.T) {
		t.Setenv("CHAT_SIGNING_SECRET", secret)
		t.Setenv("CHAT_SEND_TIMEOUT", "-1s")

		_, err := Load()
		assert.Error(t, err)
	})
}
