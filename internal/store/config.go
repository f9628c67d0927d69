package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FeeSourceOpenCTP = "openctp"
	FeeSourceAKTools = "aktools"

	MarginRateFeed  = "feed"
	MarginRateFixed = "fixed"

	BufferOfHedged   = "hedged"
	BufferOfNotional = "notional"

	LayoutTD   = "td"
	LayoutSpan = "span"

	DeriveReportedFee     = "reported_fee"
	DeriveUnits           = "units"
	DeriveReportedPrePost = "reported_pre_post"
)

// VendorConfig describes where one fund administrator's NAV notice keeps its values.
// Fields maps a field name (name, date, pre, post, fee, units, unit_nav,
// shadow_nav) to a zero-based cell index.
type VendorConfig struct {
	Key        string         `yaml:"key"`
	Signature  string         `yaml:"signature"`
	Layout     string         `yaml:"layout"`
	Split      string         `yaml:"split"`
	Derive     string         `yaml:"derive"`
	DateFormat string         `yaml:"date_format"`
	Fields     map[string]int `yaml:"fields"`
}

type Config struct {
	Timezone string `yaml:"timezone"`
	Fees     struct {
		Source          string        `yaml:"source"`
		URL             string        `yaml:"url"`
		AKToolsURL      string        `yaml:"aktools_url"`
		MaxAttempts     int           `yaml:"max_attempts"`
		RetryInterval   time.Duration `yaml:"retry_interval"`
		Timeout         time.Duration `yaml:"timeout"`
		BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
		Families        []string      `yaml:"families"`
	} `yaml:"fees"`
	Hedge struct {
		LotUnit          float64 `yaml:"lot_unit"`
		LeverageFactor   float64 `yaml:"leverage_factor"`
		MarginRateSource string  `yaml:"margin_rate_source"`
		FixedMarginRate  float64 `yaml:"fixed_margin_rate"`
		PriceFloor       float64 `yaml:"price_floor"`
		Buffer           struct {
			Mode     string  `yaml:"mode"`
			Fraction float64 `yaml:"fraction"`
		} `yaml:"buffer"`
	} `yaml:"hedge"`
	Mail struct {
		Server       string        `yaml:"server"`
		Username     string        `yaml:"username"`
		Password     string        `yaml:"password"`
		Encrypted    bool          `yaml:"encrypted"`
		Mailbox      string        `yaml:"mailbox"`
		LookbackDays int           `yaml:"lookback_days"`
		Subjects     []string      `yaml:"subjects"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"mail"`
	Nav struct {
		CostBasis float64        `yaml:"cost_basis"`
		PnLSince  string         `yaml:"pnl_since"`
		Vendors   []VendorConfig `yaml:"vendors"`
	} `yaml:"nav"`
	Dashboard struct {
		Listen         string        `yaml:"listen"`
		PasswordSHA512 string        `yaml:"password_sha512"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
	} `yaml:"dashboard"`
	History struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"history"`
}

// DefaultVendors is the roster of fund administrators known to send NAV notices.
func DefaultVendors() []VendorConfig {
	tdReported := map[string]int{"name": 1, "date": 2, "pre": 5, "units": 6, "unit_nav": 7, "fee": 9, "shadow_nav": 10}
	tdUnits := map[string]int{"name": 2, "date": 4, "units": 7, "unit_nav": 8, "shadow_nav": 10}
	return []VendorConfig{
		{Key: "hanrong", Signature: "翰荣", Layout: LayoutTD, Derive: DeriveReportedFee, DateFormat: "20060102", Fields: copyFields(tdReported)},
		{Key: "wanyan", Signature: "顽岩", Layout: LayoutTD, Derive: DeriveReportedFee, DateFormat: "20060102", Fields: copyFields(tdReported)},
		{Key: "zhengding", Signature: "正定", Layout: LayoutTD, Split: "：", Derive: DeriveUnits, Fields: copyFields(tdUnits)},
		{Key: "huijin", Signature: "汇瑾", Layout: LayoutTD, Split: "：", Derive: DeriveUnits, Fields: copyFields(tdUnits)},
		{Key: "mengxi", Signature: "蒙玺", Layout: LayoutSpan, Derive: DeriveReportedPrePost,
			Fields: map[string]int{"date": 3, "name": 5, "units": 8, "unit_nav": 9, "pre": 11, "post": 12}},
	}
}

func copyFields(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	c.Timezone = "Asia/Shanghai"

	c.Fees.Source = FeeSourceOpenCTP
	c.Fees.URL = "http://openctp.cn/fees.html"
	c.Fees.AKToolsURL = "http://127.0.0.1:8080"
	c.Fees.MaxAttempts = 10
	c.Fees.RetryInterval = 500 * time.Millisecond
	c.Fees.Timeout = 20 * time.Second
	c.Fees.BreakerCooldown = time.Minute
	c.Fees.Families = []string{"IC", "IM"}

	c.Hedge.LotUnit = 10000
	c.Hedge.LeverageFactor = 1
	c.Hedge.MarginRateSource = MarginRateFeed
	c.Hedge.FixedMarginRate = 0.14
	c.Hedge.PriceFloor = 100
	c.Hedge.Buffer.Mode = BufferOfHedged
	c.Hedge.Buffer.Fraction = 0.08

	c.Mail.Mailbox = "INBOX"
	c.Mail.LookbackDays = 8
	c.Mail.Subjects = []string{"净值", "虚拟"}
	c.Mail.Timeout = 30 * time.Second

	c.Nav.CostBasis = 12369177.80
	c.Nav.PnLSince = "2024-11-08"
	c.Nav.Vendors = DefaultVendors()

	c.Dashboard.Listen = ":8501"
	c.Dashboard.ReadTimeout = 15 * time.Second
	c.Dashboard.WriteTimeout = 2 * time.Minute

	c.History.RetentionDays = 30
	return &c
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if c.Fees.Source != FeeSourceOpenCTP && c.Fees.Source != FeeSourceAKTools {
		return fmt.Errorf("invalid fees.source '%s': must be '%s' or '%s'", c.Fees.Source, FeeSourceOpenCTP, FeeSourceAKTools)
	}
	if c.Fees.MaxAttempts < 1 {
		return fmt.Errorf("fees.max_attempts must be at least 1, got %d", c.Fees.MaxAttempts)
	}
	if len(c.Fees.Families) == 0 {
		return errors.New("fees.families cannot be empty")
	}
	if c.Hedge.LotUnit <= 0 {
		return fmt.Errorf("hedge.lot_unit must be positive, got %.2f", c.Hedge.LotUnit)
	}
	if c.Hedge.LeverageFactor <= 0 || c.Hedge.LeverageFactor > 1 {
		return fmt.Errorf("hedge.leverage_factor must be in (0, 1], got %.4f", c.Hedge.LeverageFactor)
	}
	switch c.Hedge.MarginRateSource {
	case MarginRateFeed:
	case MarginRateFixed:
		if c.Hedge.FixedMarginRate <= 0 || c.Hedge.FixedMarginRate > 1 {
			return fmt.Errorf("hedge.fixed_margin_rate must be in (0, 1], got %.4f", c.Hedge.FixedMarginRate)
		}
	default:
		return fmt.Errorf("hedge.margin_rate_source must be '%s' or '%s', got '%s'", MarginRateFeed, MarginRateFixed, c.Hedge.MarginRateSource)
	}
	if c.Hedge.Buffer.Mode != BufferOfHedged && c.Hedge.Buffer.Mode != BufferOfNotional {
		return fmt.Errorf("hedge.buffer.mode must be '%s' or '%s', got '%s'", BufferOfHedged, BufferOfNotional, c.Hedge.Buffer.Mode)
	}
	if c.Hedge.Buffer.Fraction < 0 {
		return fmt.Errorf("hedge.buffer.fraction cannot be negative, got %.4f", c.Hedge.Buffer.Fraction)
	}
	if c.Mail.LookbackDays < 0 {
		return fmt.Errorf("mail.lookback_days cannot be negative, got %d", c.Mail.LookbackDays)
	}
	seen := make(map[string]bool, len(c.Nav.Vendors))
	for i, v := range c.Nav.Vendors {
		if v.Key == "" || v.Signature == "" {
			return fmt.Errorf("nav.vendors[%d]: key and signature are required", i)
		}
		if seen[v.Key] {
			return fmt.Errorf("nav.vendors[%d]: duplicate key '%s'", i, v.Key)
		}
		seen[v.Key] = true
		if err := v.validate(); err != nil {
			return fmt.Errorf("nav.vendors[%s]: %w", v.Key, err)
		}
	}
	return nil
}

func (v VendorConfig) validate() error {
	if v.Layout != LayoutTD && v.Layout != LayoutSpan {
		return fmt.Errorf("layout must be '%s' or '%s', got '%s'", LayoutTD, LayoutSpan, v.Layout)
	}
	var required []string
	switch v.Derive {
	case DeriveReportedFee:
		required = []string{"name", "date", "pre", "fee", "units", "unit_nav", "shadow_nav"}
	case DeriveUnits:
		required = []string{"name", "date", "units", "unit_nav", "shadow_nav"}
	case DeriveReportedPrePost:
		required = []string{"name", "date", "pre", "post", "units", "unit_nav"}
	default:
		return fmt.Errorf("unknown derive '%s'", v.Derive)
	}
	for _, f := range required {
		idx, ok := v.Fields[f]
		if !ok {
			return fmt.Errorf("missing field index '%s'", f)
		}
		if idx < 0 {
			return fmt.Errorf("field '%s' has negative index %d", f, idx)
		}
	}
	return nil
}

// Location returns the mailbox/business time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// LoadConfig reads path over the defaults. An empty path yields defaults plus
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, err
		}
	}

	c.applyEnv()

	if c.Mail.LookbackDays == 0 {
		c.Mail.LookbackDays = 8
	}
	if c.Mail.Mailbox == "" {
		c.Mail.Mailbox = "INBOX"
	}
	if len(c.Nav.Vendors) == 0 {
		c.Nav.Vendors = DefaultVendors()
	}
	c.Fees.Families = normalizeFamilies(c.Fees.Families)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return c, nil
}

// applyEnv lets secrets live in .env instead of config.yaml.
func (c *Config) applyEnv() {
	if v := os.Getenv("MAIL_SERVER"); v != "" {
		c.Mail.Server = v
	}
	if v := os.Getenv("MAIL_USERNAME"); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv("MAIL_CREDENTIALS_ENCRYPTED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mail.Encrypted = b
		}
	}
	if v := os.Getenv("DASHBOARD_PASSWORD_SHA512"); v != "" {
		c.Dashboard.PasswordSHA512 = v
	}
	if v := os.Getenv("FEES_SOURCE"); v != "" {
		c.Fees.Source = v
	}
	if v := os.Getenv("DASHBOARD_LISTEN"); v != "" {
		c.Dashboard.Listen = v
	}
}

func normalizeFamilies(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
