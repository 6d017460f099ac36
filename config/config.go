package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	DbUrl string `mapstructure:"db_url" validate:"required"`
	DbKey string `mapstructure:"db_key"`

	EmbeddingHost           string  `mapstructure:"embedding_host" validate:"required"`
	EmbeddingTimeoutSeconds float64 `mapstructure:"embedding_timeout_seconds" validate:"gt=0"`

	VoiceThreshold float64 `mapstructure:"voice_threshold" validate:"gte=0,lte=1"`

	MinAudioDuration      float64 `mapstructure:"min_audio_duration" validate:"gt=0"`
	MaxAudioDuration      float64 `mapstructure:"max_audio_duration" validate:"gt=0"`
	SilenceThreshold      float64 `mapstructure:"silence_threshold" validate:"gt=0"`
	SilenceDurationSecond float64 `mapstructure:"silence_duration_seconds" validate:"gt=0"`
	ConnectTimeoutSeconds float64 `mapstructure:"connect_timeout_seconds" validate:"gt=0"`
	WebsocketTimeout      float64 `mapstructure:"websocket_timeout" validate:"gt=0"`
}

// EmbeddingTimeout returns the extractor deadline as a duration.
func (c *AppConfig) EmbeddingTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeoutSeconds * float64(time.Second))
}

// SessionBudget returns the outer bound for a websocket capture session.
func (c *AppConfig) SessionBudget() time.Duration {
	return time.Duration(c.WebsocketTimeout * float64(time.Second))
}

// reading config and initializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "voice-auth-api")
	v.SetDefault("VERSION", "1.0.0")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8000)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("DB_URL", "")
	v.SetDefault("DB_KEY", "")

	v.SetDefault("EMBEDDING_HOST", "http://localhost:8502")
	v.SetDefault("EMBEDDING_TIMEOUT_SECONDS", 15.0)

	v.SetDefault("VOICE_THRESHOLD", 0.82)

	v.SetDefault("MIN_AUDIO_DURATION", 3.0)
	v.SetDefault("MAX_AUDIO_DURATION", 30.0)
	v.SetDefault("SILENCE_THRESHOLD", 0.01)
	v.SetDefault("SILENCE_DURATION_SECONDS", 2.0)
	v.SetDefault("CONNECT_TIMEOUT_SECONDS", 10.0)
	v.SetDefault("WEBSOCKET_TIMEOUT", 65.0)
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
