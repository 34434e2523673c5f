package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the application configuration; set by NewConfig.
// Most code receives a *Config explicitly, the package-level value exists
// for the few helpers (mail templates, reset tokens) that render outside
// an injection path.
var Conf *Config

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	// GenerationConfig configures the exercise text generation client.
	GenerationConfig struct {
		ApiURL       string
		ApiKey       string
		Model        string
		MaxAttempts  int           // retries when the model output fails validation
		RequestDelay time.Duration // fixed delay between consecutive external calls
		Timeout      time.Duration
	}

	// SpeechConfig configures the dictation audio synthesis client.
	SpeechConfig struct {
		LanguageCode string
		VoiceName    string
	}

	Config struct {
		Debug     bool
		TestMode  bool
		AppName   string
		SecretKey string
		Build     string
		Env       string // DEV (default), TEST, QA, PROD
		WorkDir   string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		// MediaRoot is the directory where generated audio files are stored;
		// served by the API under /media/.
		MediaRoot string

		Server     ServerConfig
		Database   DatabaseConfig
		Generation GenerationConfig
		Speech     SpeechConfig
	}
)

// Address returns the host:port the database listens on.
func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MediaDir returns the absolute directory generated audio files live in.
func (c *Config) MediaDir() string {
	if filepath.IsAbs(c.MediaRoot) {
		return c.MediaRoot
	}
	return filepath.Join(c.WorkDir, c.MediaRoot)
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "SchoolTrainer")
	v.SetDefault("secretKey", "9wq2-tge)xcv$+31=kd&uozh7(h!b)#*r5(#yg8h^$cewm4eqy")
	v.SetDefault("build", "dev")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("mediaRoot", "media")

	v.SetDefault("serverHost", "0.0.0.0:8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "schooltrainer")
	v.SetDefault("databaseUser", "schooltrainer")
	v.SetDefault("databasePassword", "schooltrainer")
	v.SetDefault("databaseAdminUser", "postgres")
	v.SetDefault("databaseAdminPassword", "postgres")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseDisableTLS", true)

	v.SetDefault("generationApiURL", "https://generativelanguage.googleapis.com/v1beta/models")
	v.SetDefault("generationApiKey", "")
	v.SetDefault("generationModel", "gemini-1.5-flash")
	v.SetDefault("generationMaxAttempts", 3)
	v.SetDefault("generationRequestDelay", 700*time.Millisecond)
	v.SetDefault("generationTimeout", 30*time.Second)

	v.SetDefault("speechLanguageCode", "de-DE")
	v.SetDefault("speechVoiceName", "de-DE-Standard-A")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:     v.GetBool("debug"),
		TestMode:  v.GetBool("testMode"),
		AppName:   v.GetString("appName"),
		SecretKey: v.GetString("secretKey"),
		Build:     v.GetString("build"),
		Env:       env,
		WorkDir:   workDir,

		FrontendBaseURL: v.GetString("frontendBaseURL"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		MediaRoot:                 v.GetString("mediaRoot"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetInt("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Generation: GenerationConfig{
			ApiURL:       v.GetString("generationApiURL"),
			ApiKey:       v.GetString("generationApiKey"),
			Model:        v.GetString("generationModel"),
			MaxAttempts:  v.GetInt("generationMaxAttempts"),
			RequestDelay: v.GetDuration("generationRequestDelay"),
			Timeout:      v.GetDuration("generationTimeout"),
		},
		Speech: SpeechConfig{
			LanguageCode: v.GetString("speechLanguageCode"),
			VoiceName:    v.GetString("speechVoiceName"),
		},
	}
	conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: v.GetString("defaultFromEmail")}

	Conf = conf
	return conf
}
