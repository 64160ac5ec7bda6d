package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// 环境变量优先于 yaml 文件；yaml 只是给部署提供一个可选的集中入口。

const (
	DefaultRefreshCycleMs  = 5000
	DefaultSpreadBp        = 10
	DefaultMaxDeviationPct = 1.0
	DefaultOrderSize       = 100.0
	DefaultTimeoutMs       = 10000
)

// Config 进程级配置。
type Config struct {
	RefreshCycleMs  int      `yaml:"refreshCycleMs"`
	Tickers         []string `yaml:"tickers"`
	SpreadBp        int      `yaml:"spreadBp"`
	MaxDeviationPct float64  `yaml:"maxDeviationPct"`

	Subaccount   string `yaml:"subaccount"`
	SubaccountID string `yaml:"subaccountId"`
	TimeoutMs    int    `yaml:"timeoutMs"`

	BaseURL     string `yaml:"baseUrl"`
	WsURL       string `yaml:"wsUrl"`
	OracleWsURL string `yaml:"oracleWsUrl"`
	Address     string `yaml:"address"`
	PrivateKey  string `yaml:"privateKey"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// 按交易对覆盖；缺省回落到全局值
	Instruments map[string]InstrumentOverride `yaml:"instruments"`
}

// InstrumentOverride 单交易对参数覆盖。
type InstrumentOverride struct {
	OrderSize       float64 `yaml:"orderSize"`
	SpreadBp        int     `yaml:"spreadBp"`
	MaxDeviationPct float64 `yaml:"maxDeviationPct"`
}

// Instrument 运行期每个交易对的完整参数；tick size 等字段在启动时
// 由产品目录补齐，此后不再变更。
type Instrument struct {
	Ticker          string
	ProductID       string
	OrderSize       float64
	SpreadBp        int
	MaxDeviationPct float64
	TickSize        float64
	MinQty          float64
	MaxQty          float64
}

// Load 读取 yaml（path 为空则跳过），叠加环境变量，然后校验。
func Load(path string) (Config, error) {
	cfg := Config{
		RefreshCycleMs:  DefaultRefreshCycleMs,
		SpreadBp:        DefaultSpreadBp,
		MaxDeviationPct: DefaultMaxDeviationPct,
		TimeoutMs:       DefaultTimeoutMs,
		Tickers:         []string{"BTCUSD", "ETHUSD", "SOLUSD"},
		LogLevel:        "info",
		LogFormat:       "json",
		Instruments:     make(map[string]InstrumentOverride),
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
		if cfg.Instruments == nil {
			cfg.Instruments = make(map[string]InstrumentOverride)
		}
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := envInt("QUOTE_REFRESH_CYCLE"); ok {
		cfg.RefreshCycleMs = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		cfg.Tickers = splitCSV(v)
	}
	if v, ok := envInt("SPREAD_WIDTH"); ok {
		cfg.SpreadBp = v
	}
	if v, ok := envFloat("MAX_PRICE_DEVIATION"); ok {
		cfg.MaxDeviationPct = v
	}
	if v := os.Getenv("ETHEREAL_SUBACCOUNT"); v != "" {
		cfg.Subaccount = v
	}
	if v := os.Getenv("ETHEREAL_SUBACCOUNT_ID"); v != "" {
		cfg.SubaccountID = v
	}
	if v, ok := envInt("ETHEREAL_TIMEOUT"); ok {
		cfg.TimeoutMs = v
	}
	if v := os.Getenv("ETHEREAL_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("ETHEREAL_WS_URL"); v != "" {
		cfg.WsURL = v
	}
	if v := os.Getenv("ORACLE_WS_URL"); v != "" {
		cfg.OracleWsURL = v
	}
	if v := os.Getenv("ETHEREAL_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("ETHEREAL_PRIVATE_KEY"); v != "" {
		cfg.PrivateKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// 每个交易对的覆盖项：{BASE}_USD_ORDER_SIZE 等
	for _, ticker := range cfg.Tickers {
		ov := cfg.Instruments[ticker]
		prefix := envPrefix(ticker)
		if v, ok := envFloat(prefix + "ORDER_SIZE"); ok {
			ov.OrderSize = v
		}
		if v, ok := envInt(prefix + "SPREAD_WIDTH"); ok {
			ov.SpreadBp = v
		}
		if v, ok := envFloat(prefix + "MAX_PRICE_DEVIATION"); ok {
			ov.MaxDeviationPct = v
		}
		cfg.Instruments[ticker] = ov
	}
}

// envPrefix BTCUSD → "BTC_USD_"。
func envPrefix(ticker string) string {
	if base, ok := strings.CutSuffix(ticker, "USD"); ok && base != "" {
		return base + "_USD_"
	}
	return ticker + "_"
}

// InstrumentParams 解析某交易对的报价参数（覆盖项优先，缺省回落全局/默认）。
func (c Config) InstrumentParams(ticker string) (orderSize float64, spreadBp int, maxDevPct float64) {
	orderSize = DefaultOrderSize
	spreadBp = c.SpreadBp
	maxDevPct = c.MaxDeviationPct
	ov, ok := c.Instruments[ticker]
	if !ok {
		return
	}
	if ov.OrderSize > 0 {
		orderSize = ov.OrderSize
	}
	if ov.SpreadBp > 0 {
		spreadBp = ov.SpreadBp
	}
	if ov.MaxDeviationPct > 0 {
		maxDevPct = ov.MaxDeviationPct
	}
	return
}

// Validate 校验必填项；缺失属于启动期致命错误。
func Validate(cfg Config) error {
	if cfg.RefreshCycleMs <= 0 {
		return errors.New("refresh cycle must be > 0")
	}
	if len(cfg.Tickers) == 0 {
		return errors.New("tickers is required")
	}
	if cfg.Subaccount == "" {
		return errors.New("ETHEREAL_SUBACCOUNT is required")
	}
	if cfg.SubaccountID == "" {
		return errors.New("ETHEREAL_SUBACCOUNT_ID is required")
	}
	if cfg.TimeoutMs <= 0 {
		return errors.New("adapter timeout must be > 0")
	}
	if cfg.SpreadBp < 0 {
		return errors.New("spread width must be >= 0")
	}
	if cfg.MaxDeviationPct < 0 {
		return errors.New("max price deviation must be >= 0")
	}
	return nil
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return v, true
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}
