package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the application configuration singleton.
var Conf *Config

type Config struct {
	Debug                bool
	TestMode             bool
	Env                  string // DEV (default) | TEST | QA | PROD
	Build                string
	WorkDir              string
	AppName              string
	SecretKey            string
	FrontendBaseURL      string
	DefaultFromName      string
	DefaultFromAddr      string
	SendgridApiKey       string
	RollbarToken         string
	ReferralBonusCredits int

	Server struct {
		Host                      string
		Addr                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	Database struct {
		URI  string
		Name string
	}

	Storage struct {
		Endpoint       string
		AccessKey      string
		SecretKey      string
		Bucket         string
		UseSSL         bool
		DownloadURLTTL time.Duration
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

func init() {
	Conf = loadConfig()
}

func loadConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Mitihani")
	v.SetDefault("secretKey", "w#@t3ver-d3v-0nly-k3y-ch@ng3-m3-1n-pr0d")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "Mitihani")
	v.SetDefault("defaultFromAddr", "noreply@localhost")
	v.SetDefault("referralBonusCredits", 5)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "mitihani")

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKey", "minioadmin")
	v.SetDefault("storage.secretKey", "minioadmin")
	v.SetDefault("storage.bucket", "exams")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.downloadURLTTL", 24*time.Hour)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.viper.Unmarshal: %v", err)
	}
	if conf.WorkDir == "" {
		conf.WorkDir = Getwd()
	}
	return conf
}
