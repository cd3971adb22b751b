// Package config provides utilities to load environment variables & set config structs, it includes app, logger, db, redis cache, queue and task manager environment variables.
package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// AppConfig contains environment variables for the application, database, cache, queue, logger and task manager
type (
	AppConfig struct {
		App         *App         `mapstructure:"app"`
		Redis       *Redis       `mapstructure:"redis"`
		Logger      *Logger      `mapstructure:"logger"`
		DB          *DB          `mapstructure:"db"`
		Queue       *Queue       `mapstructure:"queue"`
		TaskManager *TaskManager `mapstructure:"task_manager"`
	}

	// App contains all the environment variables for the application
	App struct {
		Name  string `mapstructure:"name"`
		Env   string `mapstructure:"env"`
		Owner string `mapstructure:"owner"`
		// Manifest is the path to the project manifest (grpc-project.yaml)
		Manifest string `mapstructure:"manifest"`
	}

	// Redis contains all the environment variables for the cache service
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	}

	// DB contains all the environment variables for the database
	DB struct {
		Connection string `mapstructure:"connection"`
		Database   string `mapstructure:"database"`
		Host       string `mapstructure:"host"`
		Port       string `mapstructure:"port"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		Name       string `mapstructure:"name"`
	}

	// Queue contains the environment variables for the AMQP event exchange
	Queue struct {
		Enabled  bool   `mapstructure:"enabled"`
		URL      string `mapstructure:"url"`
		Exchange string `mapstructure:"exchange"`
	}

	// TaskManager contains the task lifecycle manager settings
	TaskManager struct {
		Enabled          bool          `mapstructure:"enabled"`
		AutoUpdateStatus bool          `mapstructure:"auto_update_status"`
		NotifyAssignees  bool          `mapstructure:"notify_assignees"`
		ScanInterval     time.Duration `mapstructure:"scan_interval"`
		// ExecutionTimeout bounds a single script run; zero means no limit
		ExecutionTimeout time.Duration `mapstructure:"execution_timeout"`
		MetricsAddr      string        `mapstructure:"metrics_addr"`
	}

	// Logger contains all the environment variables for the logger
	Logger struct {
		Level             string                `mapstructure:"level"`
		Development       bool                  `mapstructure:"development"`
		DisableStacktrace bool                  `mapstructure:"disableStacktrace"`
		Encoding          string                `mapstructure:"encoding"`
		EncoderConfig     zapcore.EncoderConfig `mapstructure:"encoderConfig"`
	}
)

// addZapEncoderConfig fills encoder config with zapcore types
func addZapEncoderConfig(cfg *zapcore.EncoderConfig) {
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.SecondsDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.EncodeName = func(s string, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString("[" + s + "]")
	}
}

// New creates a new AppConfig instance
func New() *AppConfig {
	// Set up viper to read the config.yaml file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/secrets/")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("env")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("task_manager.enabled", true)
	viper.SetDefault("task_manager.auto_update_status", true)
	viper.SetDefault("task_manager.notify_assignees", true)
	viper.SetDefault("task_manager.scan_interval", time.Minute)
	viper.SetDefault("app.manifest", "grpc-project.yaml")
	viper.SetDefault("queue.exchange", "tasks.events")

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Fatalf("config file not found: %v", err)
		} else {
			log.Fatalf("error reading config file: %v", err)
		}
	}

	// Bind the app.name key to the APP_NAME environment variable
	if err := viper.BindEnv("app.name", "APP_NAME"); err != nil {
		log.Fatalf("error finding APP_NAME env variable")
	}

	// Bind DB variables
	viper.BindEnv("db.host", "PG_HOST")
	viper.BindEnv("db.port", "PG_PORT")
	viper.BindEnv("db.user", "PG_USER")
	viper.BindEnv("db.password", "PG_PASS")
	viper.BindEnv("db.name", "PG_DB")

	// Bind Redis variables
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Bind Queue variables
	viper.BindEnv("queue.url", "AMQP_URL")

	// Create an instance of AppConfig
	var config *AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("unable to decode into struct: %v", err)
	}
	addZapEncoderConfig(&config.Logger.EncoderConfig)

	return config
}
