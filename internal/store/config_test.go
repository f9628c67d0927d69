package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, FeeSourceOpenCTP, cfg.Fees.Source)
	assert.Equal(t, 10, cfg.Fees.MaxAttempts)
	assert.Equal(t, []string{"IC", "IM"}, cfg.Fees.Families)
	assert.Equal(t, 8, cfg.Mail.LookbackDays)
	assert.Equal(t, []string{"净值", "虚拟"}, cfg.Mail.Subjects)
	assert.Equal(t, BufferOfHedged, cfg.Hedge.Buffer.Mode)
	assert.InDelta(t, 0.08, cfg.Hedge.Buffer.Fraction, 1e-9)
	assert.Len(t, cfg.Nav.Vendors, 5)
	assert.InDelta(t, 12369177.80, cfg.Nav.CostBasis, 1e-6)
}

func TestLoadConfigOverrides(t *testing.T) {
	p := writeConfig(t, `
fees:
  source: aktools
  max_attempts: 3
  retry_interval: 2s
  families: [ic, " if "]
hedge:
  leverage_factor: 0.79
  margin_rate_source: fixed
  fixed_margin_rate: 0.08
  buffer:
    mode: notional
    fraction: 0.21
nav:
  cost_basis: 1000
  vendors:
    - key: hanrong
      signature: 翰荣
      layout: td
      derive: reported_fee
      date_format: "20060102"
      fields: {name: 1, date: 2, pre: 5, units: 6, unit_nav: 7, fee: 9, shadow_nav: 10}
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, FeeSourceAKTools, cfg.Fees.Source)
	assert.Equal(t, 3, cfg.Fees.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Fees.RetryInterval)
	assert.Equal(t, []string{"IC", "IF"}, cfg.Fees.Families)
	assert.InDelta(t, 0.79, cfg.Hedge.LeverageFactor, 1e-9)
	assert.Equal(t, MarginRateFixed, cfg.Hedge.MarginRateSource)
	assert.Equal(t, BufferOfNotional, cfg.Hedge.Buffer.Mode)
	require.Len(t, cfg.Nav.Vendors, 1)
	assert.Equal(t, 5, cfg.Nav.Vendors[0].Fields["pre"])
	// untouched sections keep defaults
	assert.Equal(t, "INBOX", cfg.Mail.Mailbox)
}

func TestLoadConfigEnvSecrets(t *testing.T) {
	t.Setenv("MAIL_SERVER", "imap.example.com")
	t.Setenv("MAIL_USERNAME", "ops@example.com")
	t.Setenv("MAIL_PASSWORD", "s3cret")
	t.Setenv("MAIL_CREDENTIALS_ENCRYPTED", "true")
	t.Setenv("DASHBOARD_PASSWORD_SHA512", "abc")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "imap.example.com", cfg.Mail.Server)
	assert.Equal(t, "ops@example.com", cfg.Mail.Username)
	assert.Equal(t, "s3cret", cfg.Mail.Password)
	assert.True(t, cfg.Mail.Encrypted)
	assert.Equal(t, "abc", cfg.Dashboard.PasswordSHA512)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown source", func(c *Config) { c.Fees.Source = "csv" }},
		{"zero attempts", func(c *Config) { c.Fees.MaxAttempts = 0 }},
		{"leverage above one", func(c *Config) { c.Hedge.LeverageFactor = 1.5 }},
		{"fixed rate missing", func(c *Config) {
			c.Hedge.MarginRateSource = MarginRateFixed
			c.Hedge.FixedMarginRate = 0
		}},
		{"buffer mode", func(c *Config) { c.Hedge.Buffer.Mode = "equity" }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"duplicate vendor", func(c *Config) { c.Nav.Vendors = append(c.Nav.Vendors, c.Nav.Vendors[0]) }},
		{"vendor missing field", func(c *Config) { delete(c.Nav.Vendors[4].Fields, "post") }},
		{"vendor bad layout", func(c *Config) { c.Nav.Vendors[0].Layout = "div" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
