package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// HouseholdConfig carries the per-house billing settings. There is no hidden
// auto-created settings row: the holder is constructed once at startup and
// injected wherever the horizon or currency is needed.
type HouseholdConfig struct {
	HouseName         string `mapstructure:"houseName"`
	Currency          string `mapstructure:"currency"`
	BillingCycleYears int    `mapstructure:"billingCycleYears"`
	StatementFromName string `mapstructure:"statementFromName"`
	StatementReplyTo  string `mapstructure:"statementReplyTo"`
	UseHTTPS          bool   `mapstructure:"useHttps"`
	PublicHost        string `mapstructure:"publicHost"`
}

// BaseURL returns the public address of the house dashboard, or an empty
// string when no public host is configured.
func (c HouseholdConfig) BaseURL() string {
	host := strings.TrimSpace(c.PublicHost)
	if host == "" {
		return ""
	}
	scheme := "http"
	if c.UseHTTPS {
		scheme = "https"
	}
	return scheme + "://" + host
}

func DefaultHouseholdConfig() HouseholdConfig {
	return HouseholdConfig{
		HouseName:         "The House",
		Currency:          "GBP",
		BillingCycleYears: 1,
		StatementFromName: "Hearth",
	}
}

func validateHouseholdConfig(cfg HouseholdConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("household currency is required")
	}
	if cfg.BillingCycleYears < 1 {
		return errors.New("billingCycleYears must be at least 1")
	}
	return nil
}

// HouseholdConfigHolder exposes the current household config and hot-reloads
// it when household.yml changes on disk.
type HouseholdConfigHolder struct {
	current atomic.Value // holds HouseholdConfig
}

func NewHouseholdConfigHolder() (*HouseholdConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("household")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/hearth/config")
	v.AddConfigPath("/etc/hearth")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HEARTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultHouseholdConfig()
	v.SetDefault("household.houseName", defaults.HouseName)
	v.SetDefault("household.currency", defaults.Currency)
	v.SetDefault("household.billingCycleYears", defaults.BillingCycleYears)
	v.SetDefault("household.statementFromName", defaults.StatementFromName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg HouseholdConfig
	if err := v.UnmarshalKey("household", &cfg); err != nil {
		return nil, err
	}
	if err := validateHouseholdConfig(cfg); err != nil {
		return nil, err
	}

	holder := &HouseholdConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated HouseholdConfig
		if err := v.UnmarshalKey("household", &updated); err != nil {
			log.Printf("[household-config] reload failed: %v", err)
			return
		}
		if err := validateHouseholdConfig(updated); err != nil {
			log.Printf("[household-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

func (h *HouseholdConfigHolder) Current() HouseholdConfig {
	return h.current.Load().(HouseholdConfig)
}

// NewStaticHouseholdConfigHolder returns a holder pinned to cfg; tests use it
// to avoid touching the filesystem.
func NewStaticHouseholdConfigHolder(cfg HouseholdConfig) *HouseholdConfigHolder {
	holder := &HouseholdConfigHolder{}
	holder.current.Store(cfg)
	return holder
}
