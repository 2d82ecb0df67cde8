package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset" mapstructure:"dataset"`
	GND      GNDConfig      `yaml:"gnd" mapstructure:"gnd"`
	Wikidata WikidataConfig `yaml:"wikidata" mapstructure:"wikidata"`
	GeoNames GeoNamesConfig `yaml:"geonames" mapstructure:"geonames"`
	Vocab    VocabConfig    `yaml:"vocab" mapstructure:"vocab"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatasetConfig configures tabular input and output.
type DatasetConfig struct {
	Input        string `yaml:"input" mapstructure:"input"`
	Output       string `yaml:"output" mapstructure:"output"`
	DebugColumns bool   `yaml:"debug_columns" mapstructure:"debug_columns"`
}

// GNDConfig configures the lobid-gnd authority client.
type GNDConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   string `yaml:"rate_limit" mapstructure:"rate_limit"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WikidataConfig configures the Wikidata client.
type WikidataConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   string `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeoNamesConfig configures the GeoNames client. Username is the
// registered account the service requires.
type GeoNamesConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Username    string `yaml:"username" mapstructure:"username"`
	RateLimit   string `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// VocabConfig configures the area-code vocabulary source.
type VocabConfig struct {
	URL  string `yaml:"url" mapstructure:"url"`
	File string `yaml:"file" mapstructure:"file"`
}

// StoreConfig configures the run-bookkeeping backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ExportConfig configures the geo-data exports.
type ExportConfig struct {
	GeoJSON   string `yaml:"geojson" mapstructure:"geojson"`
	Shapefile string `yaml:"shapefile" mapstructure:"shapefile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.output", "enriched.tsv")
	v.SetDefault("gnd.base_url", "https://lobid.org/gnd/")
	v.SetDefault("gnd.rate_limit", "5/second")
	v.SetDefault("gnd.page_size", 100)
	v.SetDefault("gnd.timeout_secs", 10)
	v.SetDefault("wikidata.base_url", "https://www.wikidata.org/w/api.php")
	v.SetDefault("wikidata.rate_limit", "5/second")
	v.SetDefault("wikidata.timeout_secs", 10)
	v.SetDefault("geonames.base_url", "http://api.geonames.org/")
	v.SetDefault("geonames.rate_limit", "1000/hour")
	v.SetDefault("geonames.timeout_secs", 10)
	v.SetDefault("vocab.url", "https://d-nb.info/standards/vocab/gnd/geographic-area-code.rdf")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geolit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
