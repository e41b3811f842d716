package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stwalsh4118/taxappeal/internal/analyzer"
	"github.com/stwalsh4118/taxappeal/internal/lifecycle"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Analysis AnalysisConfig
	Fees     FeeConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	PoolMin     int
	PoolMax     int
	AutoMigrate bool
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// AnalysisConfig holds the county constants and the optional-lookup budget
// of the analysis pipeline.
type AnalysisConfig struct {
	MarketMultiplier     float64
	EffectiveTaxRate     float64
	PrimaryComparables   int
	ComparablePoolSize   int
	SocialProofTimeout   time.Duration
	SocialProofCacheTTL  time.Duration
	DeadlineCalendarPath string

	// Strength bands and gate thresholds of the analyzer.
	MVBands         analyzer.Bands
	UNIBands        analyzer.Bands
	MaxSaleCV       float64
	MaxCOD          float64
	DominanceMargin float64
}

// FeeConfig holds the success fee schedule.
type FeeConfig struct {
	SuccessFeePercent float64
	SuccessFeeMin     float64
	SuccessFeeMax     float64
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "taxappeal")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	v.SetDefault("MARKET_MULTIPLIER", 10.0)
	v.SetDefault("EFFECTIVE_TAX_RATE", 0.20)
	v.SetDefault("PRIMARY_COMPARABLES", 5)
	v.SetDefault("COMPARABLE_POOL_SIZE", 25)
	v.SetDefault("SOCIAL_PROOF_TIMEOUT", "750ms")
	v.SetDefault("SOCIAL_PROOF_CACHE_TTL", "15m")
	v.SetDefault("DEADLINE_CALENDAR_PATH", "")

	defaults := analyzer.DefaultParams()
	setBandDefaults(v, "MV", defaults.MVBands)
	setBandDefaults(v, "UNI", defaults.UNIBands)
	v.SetDefault("MAX_SALE_CV", defaults.MaxSaleCV)
	v.SetDefault("MAX_COD", defaults.MaxCOD)
	v.SetDefault("DOMINANCE_MARGIN", defaults.DominanceMargin)

	v.SetDefault("SUCCESS_FEE_PERCENT", 0.10)
	v.SetDefault("SUCCESS_FEE_MIN", 25.0)
	v.SetDefault("SUCCESS_FEE_MAX", 1000.0)

	// Bind environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			Name:        v.GetString("DB_NAME"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			PoolMin:     v.GetInt("DB_POOL_MIN"),
			PoolMax:     v.GetInt("DB_POOL_MAX"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Analysis: AnalysisConfig{
			MarketMultiplier:     v.GetFloat64("MARKET_MULTIPLIER"),
			EffectiveTaxRate:     v.GetFloat64("EFFECTIVE_TAX_RATE"),
			PrimaryComparables:   v.GetInt("PRIMARY_COMPARABLES"),
			ComparablePoolSize:   v.GetInt("COMPARABLE_POOL_SIZE"),
			SocialProofTimeout:   v.GetDuration("SOCIAL_PROOF_TIMEOUT"),
			SocialProofCacheTTL:  v.GetDuration("SOCIAL_PROOF_CACHE_TTL"),
			DeadlineCalendarPath: v.GetString("DEADLINE_CALENDAR_PATH"),
			MVBands:              getBands(v, "MV"),
			UNIBands:             getBands(v, "UNI"),
			MaxSaleCV:            v.GetFloat64("MAX_SALE_CV"),
			MaxCOD:               v.GetFloat64("MAX_COD"),
			DominanceMargin:      v.GetFloat64("DOMINANCE_MARGIN"),
		},
		Fees: FeeConfig{
			SuccessFeePercent: v.GetFloat64("SUCCESS_FEE_PERCENT"),
			SuccessFeeMin:     v.GetFloat64("SUCCESS_FEE_MIN"),
			SuccessFeeMax:     v.GetFloat64("SUCCESS_FEE_MAX"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate analysis config
	if c.Analysis.MarketMultiplier <= 0 {
		return fmt.Errorf("MARKET_MULTIPLIER must be positive")
	}
	if c.Analysis.EffectiveTaxRate <= 0 || c.Analysis.EffectiveTaxRate > 1 {
		return fmt.Errorf("EFFECTIVE_TAX_RATE must be in (0, 1]")
	}
	if c.Analysis.PrimaryComparables < 1 {
		return fmt.Errorf("PRIMARY_COMPARABLES must be at least 1")
	}
	if c.Analysis.ComparablePoolSize < c.Analysis.PrimaryComparables {
		return fmt.Errorf("COMPARABLE_POOL_SIZE must be at least PRIMARY_COMPARABLES")
	}
	if c.Analysis.SocialProofTimeout <= 0 {
		return fmt.Errorf("SOCIAL_PROOF_TIMEOUT must be positive")
	}
	if err := validateBands("MV", c.Analysis.MVBands); err != nil {
		return err
	}
	if err := validateBands("UNI", c.Analysis.UNIBands); err != nil {
		return err
	}
	if c.Analysis.MaxSaleCV <= 0 || c.Analysis.MaxCOD <= 0 {
		return fmt.Errorf("MAX_SALE_CV and MAX_COD must be positive")
	}
	if c.Analysis.DominanceMargin < 0 || c.Analysis.DominanceMargin >= 1 {
		return fmt.Errorf("DOMINANCE_MARGIN must be in [0, 1)")
	}

	// Validate fee schedule
	if c.Fees.SuccessFeePercent <= 0 || c.Fees.SuccessFeePercent > 1 {
		return fmt.Errorf("SUCCESS_FEE_PERCENT must be in (0, 1]")
	}
	if c.Fees.SuccessFeeMin < 0 {
		return fmt.Errorf("SUCCESS_FEE_MIN must be non-negative")
	}
	if c.Fees.SuccessFeeMin > c.Fees.SuccessFeeMax {
		return fmt.Errorf("SUCCESS_FEE_MIN must be less than or equal to SUCCESS_FEE_MAX")
	}

	return nil
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// AnalyzerParams returns the analyzer defaults overridden by the configured
// county constants, strength bands and gate thresholds.
func (c *Config) AnalyzerParams() analyzer.Params {
	p := analyzer.DefaultParams()
	p.MarketMultiplier = c.Analysis.MarketMultiplier
	p.EffectiveTaxRate = c.Analysis.EffectiveTaxRate
	p.PrimaryComparables = c.Analysis.PrimaryComparables
	p.MVBands = c.Analysis.MVBands
	p.UNIBands = c.Analysis.UNIBands
	p.MaxSaleCV = c.Analysis.MaxSaleCV
	p.MaxCOD = c.Analysis.MaxCOD
	p.DominanceMargin = c.Analysis.DominanceMargin
	return p
}

// setBandDefaults registers defaults for the <prefix>_STRONG_* and
// <prefix>_MODERATE_* band variables.
func setBandDefaults(v *viper.Viper, prefix string, b analyzer.Bands) {
	v.SetDefault(prefix+"_STRONG_CONFIDENCE", b.StrongConfidence)
	v.SetDefault(prefix+"_MODERATE_CONFIDENCE", b.ModerateConfidence)
	v.SetDefault(prefix+"_STRONG_GAP", b.StrongGap)
	v.SetDefault(prefix+"_MODERATE_GAP", b.ModerateGap)
	v.SetDefault(prefix+"_STRONG_SAMPLE", b.StrongSample)
	v.SetDefault(prefix+"_MODERATE_SAMPLE", b.ModerateSample)
}

func getBands(v *viper.Viper, prefix string) analyzer.Bands {
	return analyzer.Bands{
		StrongConfidence:   v.GetFloat64(prefix + "_STRONG_CONFIDENCE"),
		ModerateConfidence: v.GetFloat64(prefix + "_MODERATE_CONFIDENCE"),
		StrongGap:          v.GetFloat64(prefix + "_STRONG_GAP"),
		ModerateGap:        v.GetFloat64(prefix + "_MODERATE_GAP"),
		StrongSample:       v.GetInt(prefix + "_STRONG_SAMPLE"),
		ModerateSample:     v.GetInt(prefix + "_MODERATE_SAMPLE"),
	}
}

// validateBands requires each moderate threshold to sit at or below its
// strong counterpart, with confidences in [0, 1].
func validateBands(prefix string, b analyzer.Bands) error {
	if b.ModerateConfidence < 0 || b.StrongConfidence > 1 || b.ModerateConfidence > b.StrongConfidence {
		return fmt.Errorf("%s band confidences must satisfy 0 <= MODERATE <= STRONG <= 1", prefix)
	}
	if b.ModerateGap < 0 || b.ModerateGap > b.StrongGap {
		return fmt.Errorf("%s band gaps must satisfy 0 <= MODERATE <= STRONG", prefix)
	}
	if b.ModerateSample < 0 || b.ModerateSample > b.StrongSample {
		return fmt.Errorf("%s band samples must satisfy 0 <= MODERATE <= STRONG", prefix)
	}
	return nil
}

// LifecycleParams returns the fee schedule used by the appeal lifecycle.
func (c *Config) LifecycleParams() lifecycle.Params {
	return lifecycle.Params{
		EffectiveTaxRate:  c.Analysis.EffectiveTaxRate,
		SuccessFeePercent: c.Fees.SuccessFeePercent,
		SuccessFeeMin:     c.Fees.SuccessFeeMin,
		SuccessFeeMax:     c.Fees.SuccessFeeMax,
	}
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
