// =============================================================================
// Order History Export - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration. Everything has a default, so the tool runs without any
// config file at all; a config.yaml only overrides what it names.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (applyDefaults)
//   2. The YAML file given with --config
//   3. Environment variables (ORDERS_*), optionally loaded from a .env file
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultExportFileName is the export name used when export_file_name is
// unset. The xlsx export swaps its extension.
const DefaultExportFileName = "orders.csv"

// Store backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Environment variables that override the file configuration.
const (
	EnvStoreBackend  = "ORDERS_STORE_BACKEND"
	EnvStorePath     = "ORDERS_STORE_PATH"
	EnvRedisAddress  = "ORDERS_REDIS_ADDRESS"
	EnvRedisPassword = "ORDERS_REDIS_PASSWORD"
	EnvRedisDB       = "ORDERS_REDIS_DB"
	EnvLogLevel      = "ORDERS_LOG_LEVEL"
)

// DefaultInvoiceURLTemplate is the printable invoice page. The order id is appended.
const DefaultInvoiceURLTemplate = "https://www.amazon.co.jp/gp/css/summary/print.html/ref=oh_aui_ajax_invoice?ie=UTF8&orderID="

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where exports and sweep reports are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ExportFileName is the name of the delimited export.
	// Default: "orders.csv"
	ExportFileName string `yaml:"export_file_name"`

	// OutputNameFormat, when set, replaces ExportFileName. Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	// Example: "orders_{timestamp}.csv"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional path that receives a copy of the log output.
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the number of invoices fetched at the same time.
	// Store updates are always applied in list order regardless.
	// Default: 1
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps the sweep going after an order fails to extract.
	// When false the first failure stops the sweep.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	// FetchTimeout bounds a single invoice fetch. Zero means no timeout.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// =========================================================================
	// INVOICE SOURCE
	// =========================================================================

	// InvoiceURLTemplate is the invoice URL prefix; the order id is appended.
	InvoiceURLTemplate string `yaml:"invoice_url_template"`

	// InvoiceHeaders are sent with every invoice request, e.g. the session Cookie.
	InvoiceHeaders map[string]string `yaml:"invoice_headers"`

	// InvoiceDir, when set, reads saved invoices from <dir>/<order id>.html
	// instead of fetching them over HTTP.
	InvoiceDir string `yaml:"invoice_dir"`

	// =========================================================================
	// NESTED SECTIONS
	// =========================================================================

	Store  StoreConfig  `yaml:"store"`
	Layout LayoutConfig `yaml:"layout"`
}

// =============================================================================
// STORE CONFIGURATION STRUCTURE
// =============================================================================

// StoreConfig selects the keyed store that holds the session state.
type StoreConfig struct {
	// Backend is one of "memory", "file", "redis".
	// Default: "file"
	Backend string `yaml:"backend"`

	// Path is the session file used by the "file" backend.
	// Default: "./session.json"
	Path string `yaml:"path"`

	// Namespace prefixes every key this tool owns.
	// Default: "HIST_ADDON_"
	Namespace string `yaml:"namespace"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// =============================================================================
// LAYOUT CONFIGURATION STRUCTURE
// =============================================================================

// LayoutConfig holds the selectors and phrases used to read the two known
// page layouts. The defaults match the pages as currently served; override
// only when the markup changes.
type LayoutConfig struct {
	// Order list page.
	OrderCardSelector         string   `yaml:"order_card_selector"`
	OrderCardFallbackSelector string   `yaml:"order_card_fallback_selector"`
	OrderIDSelector           string   `yaml:"order_id_selector"`
	ShipmentStatusSelector    string   `yaml:"shipment_status_selector"`
	CancelledPhrases          []string `yaml:"cancelled_phrases"`

	// Invoice, table layout (variant A).
	SentinelInputName string `yaml:"sentinel_input_name"`
	OrderDateMarker   string `yaml:"order_date_marker"`
	DayMarker         string `yaml:"day_marker"`

	// Invoice, grid layout (variant B).
	LeftBlockSelector  string `yaml:"left_block_selector"`
	RightBlockSelector string `yaml:"right_block_selector"`
	ItemTitleSelector  string `yaml:"item_title_selector"`
	UnitPriceSelector  string `yaml:"unit_price_selector"`
	QuantitySelector   string `yaml:"quantity_selector"`
	OrderDateSelector  string `yaml:"order_date_selector"`
}

// DefaultLayout returns the layout selectors for the known page generations.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		OrderCardSelector:         ".order-card",
		OrderCardFallbackSelector: ".js-order-card",
		OrderIDSelector:           ".yohtmlc-order-id",
		ShipmentStatusSelector:    ".yohtmlc-shipment-status-primaryText",
		CancelledPhrases:          []string{"キャンセル済み", "返品受付済み"},

		SentinelInputName: "ue_back",
		OrderDateMarker:   "注文",
		DayMarker:         "日",

		LeftBlockSelector:  ".a-fixed-left-grid-col.a-col-left",
		RightBlockSelector: ".a-fixed-left-grid-col.a-col-right",
		ItemTitleSelector:  `[data-component="itemTitle"]`,
		UnitPriceSelector:  `[data-component="unitPrice"]`,
		QuantitySelector:   ".od-item-view-qty",
		OrderDateSelector:  `[data-component="orderDate"]`,
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	var cfg MainConfig
	applyDefaults(&cfg)
	return &cfg
}

// LoadMainConfig loads the main configuration from a YAML file.
// A missing file is not an error: the defaults are returned.
// Environment overrides are applied after the file.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var cfg MainConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := validateMainConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ShouldContinueOnError reports the effective ContinueOnError setting.
func (c *MainConfig) ShouldContinueOnError() bool {
	return c.ContinueOnError == nil || *c.ContinueOnError
}

// applyEnv copies ORDERS_* environment variables over the file values.
func applyEnv(cfg *MainConfig) error {
	if v := os.Getenv(EnvStoreBackend); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvRedisAddress); v != "" {
		cfg.Store.Redis.Address = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRedisDB, v, err)
		}
		cfg.Store.Redis.DB = db
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *MainConfig) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.ExportFileName == "" {
		cfg.ExportFileName = DefaultExportFileName
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.InvoiceURLTemplate == "" {
		cfg.InvoiceURLTemplate = DefaultInvoiceURLTemplate
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFile
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./session.json"
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = "HIST_ADDON_"
	}
	if cfg.Store.Redis.Address == "" {
		cfg.Store.Redis.Address = "localhost:6379"
	}

	// Layout defaults are applied field by field so a config file can
	// override a single selector.
	def := DefaultLayout()
	l := &cfg.Layout
	setDefault(&l.OrderCardSelector, def.OrderCardSelector)
	setDefault(&l.OrderCardFallbackSelector, def.OrderCardFallbackSelector)
	setDefault(&l.OrderIDSelector, def.OrderIDSelector)
	setDefault(&l.ShipmentStatusSelector, def.ShipmentStatusSelector)
	if len(l.CancelledPhrases) == 0 {
		l.CancelledPhrases = def.CancelledPhrases
	}
	setDefault(&l.SentinelInputName, def.SentinelInputName)
	setDefault(&l.OrderDateMarker, def.OrderDateMarker)
	setDefault(&l.DayMarker, def.DayMarker)
	setDefault(&l.LeftBlockSelector, def.LeftBlockSelector)
	setDefault(&l.RightBlockSelector, def.RightBlockSelector)
	setDefault(&l.ItemTitleSelector, def.ItemTitleSelector)
	setDefault(&l.UnitPriceSelector, def.UnitPriceSelector)
	setDefault(&l.QuantitySelector, def.QuantitySelector)
	setDefault(&l.OrderDateSelector, def.OrderDateSelector)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(cfg *MainConfig) error {
	switch cfg.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	if cfg.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative")
	}

	return nil
}
