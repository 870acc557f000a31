package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugHost       string
		Host            string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		SessionTTL      time.Duration
		SecureCookies   bool
	}

	DatabaseConfig struct {
		Engine       string // postgres | memory
		Host         string
		Port         string
		User         string
		Password     string
		Name         string
		DisableTLS   bool
		MaxOpenConns int
	}

	RedisConfig struct {
		Addr          string
		Password      string
		DB            int
		AssignmentTTL time.Duration
	}

	AttendanceConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	SweepConfig struct {
		Interval time.Duration
		Disabled bool
	}

	EmailConfig struct {
		FromName       string
		FromAddress    string
		SendgridAPIKey string
	}

	Config struct {
		AppName      string
		Build        string
		Env          string // DEV (default), TEST, QA, PROD
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		BaseURL      string

		Server     ServerConfig
		Database   DatabaseConfig
		Redis      RedisConfig
		Attendance AttendanceConfig
		Sweep      SweepConfig
		Email      EmailConfig
	}
)

// Enabled reports whether the periodic sweep should run. A non-positive interval disables it.
func (c SweepConfig) Enabled() bool {
	return !c.Disabled && c.Interval > 0
}

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Masomo")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("test.mode", false)
	v.SetDefault("secret.key", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbar.token", "")
	v.SetDefault("base.url", "http://localhost:8000")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug.host", ":4000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.read.timeout", 5*time.Second)
	v.SetDefault("server.write.timeout", 10*time.Second)
	v.SetDefault("server.shutdown.timeout", 10*time.Second)
	v.SetDefault("server.session.ttl", 12*time.Hour)
	v.SetDefault("server.secure.cookies", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "masomo")
	v.SetDefault("database.name", "gradebook")
	v.SetDefault("database.disable.tls", true)
	v.SetDefault("database.max.open.conns", 25)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.assignment.ttl", 10*time.Minute)

	v.SetDefault("attendance.base.url", "http://localhost:8081")
	v.SetDefault("attendance.timeout", 3*time.Second)

	v.SetDefault("sweep.interval", 5*time.Minute)
	v.SetDefault("sweep.disabled", false)

	v.SetDefault("email.from.name", "Masomo")
	v.SetDefault("email.from.address", "noreply@localhost")
	v.SetDefault("email.sendgrid.api.key", "")
}

// NewConfig loads the app configuration.
// Values come from defaults, then from `config/.env.<env>` if it exists, then from the environment
// (keys are upper-cased with "." replaced by "_", e.g. DATABASE_HOST).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("app.name"),
		Build:        v.GetString("build"),
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     env == "TEST" || v.GetBool("test.mode"),
		SecretKey:    v.GetString("secret.key"),
		RollbarToken: v.GetString("rollbar.token"),
		BaseURL:      strings.TrimSuffix(v.GetString("base.url"), "/"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debug.host"),
			Host:            v.GetString("server.host"),
			ReadTimeout:     v.GetDuration("server.read.timeout"),
			WriteTimeout:    v.GetDuration("server.write.timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown.timeout"),
			SessionTTL:      v.GetDuration("server.session.ttl"),
			SecureCookies:   v.GetBool("server.secure.cookies"),
		},
		Database: DatabaseConfig{
			Engine:       v.GetString("database.engine"),
			Host:         v.GetString("database.host"),
			Port:         v.GetString("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			Name:         v.GetString("database.name"),
			DisableTLS:   v.GetBool("database.disable.tls"),
			MaxOpenConns: v.GetInt("database.max.open.conns"),
		},
		Redis: RedisConfig{
			Addr:          v.GetString("redis.addr"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			AssignmentTTL: v.GetDuration("redis.assignment.ttl"),
		},
		Attendance: AttendanceConfig{
			BaseURL: strings.TrimSuffix(v.GetString("attendance.base.url"), "/"),
			Timeout: v.GetDuration("attendance.timeout"),
		},
		Sweep: SweepConfig{
			Interval: v.GetDuration("sweep.interval"),
			Disabled: v.GetBool("sweep.disabled"),
		},
		Email: EmailConfig{
			FromName:       v.GetString("email.from.name"),
			FromAddress:    v.GetString("email.from.address"),
			SendgridAPIKey: v.GetString("email.sendgrid.api.key"),
		},
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: debug off, in-memory storage, no remote services.
func NewTestConfig() *Config {
	return &Config{
		AppName:   "Masomo",
		Build:     "test",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "secret",
		BaseURL:   "http://localhost:8000",
		Server: ServerConfig{
			Address:         ":0",
			ShutdownTimeout: time.Second,
			SessionTTL:      time.Hour,
		},
		Database:   DatabaseConfig{Engine: "memory"},
		Redis:      RedisConfig{AssignmentTTL: time.Minute},
		Attendance: AttendanceConfig{Timeout: time.Second},
		Sweep:      SweepConfig{Interval: time.Minute, Disabled: true},
		Email:      EmailConfig{FromName: "Masomo", FromAddress: "noreply@localhost"},
	}
}
