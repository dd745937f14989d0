package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server        ServerConfig
		Database      DatabaseConfig
		REST          RESTConfig
		Avatar        AvatarConfig
		Groups        GroupsConfig
		Notifications NotificationsConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
		BodyLimit                 string
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite3
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RESTConfig struct {
		Namespace string
		Version   string
	}

	// AvatarConfig mirrors the host's avatar constants.
	AvatarConfig struct {
		UploadPath          string
		URL                 string
		FullWidth           int
		FullHeight          int
		ThumbWidth          int
		ThumbHeight         int
		OriginalMaxWidth    int
		OriginalMaxFilesize int64
		UIAvailableWidth    int // 0 means "not set"
		DefaultGroupURL     string
		DefaultUserURL      string
	}

	GroupsConfig struct {
		CacheTTL time.Duration
	}

	NotificationsConfig struct {
		EmailOnCreate bool
	}
)

// NewConfig reads the configuration from defaults, an optional dotenv file and the environment.
// Environment keys are prefixed with the uppercased ENV, e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Jamii")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "h3!k2q#8x0-v=jamii)7e4w$c+ot9z&u5dr1(m6yn@pb")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Jamii <noreply@localhost>")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.bodyLimit", "10M")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "jamii")
	v.SetDefault("database.user", "jamii")
	v.SetDefault("database.password", "jamii")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("rest.namespace", "buddypress")
	v.SetDefault("rest.version", "v1")

	v.SetDefault("avatar.uploadPath", filepath.Join(".", "uploads"))
	v.SetDefault("avatar.url", "http://localhost:8000/uploads")
	v.SetDefault("avatar.fullWidth", 150)
	v.SetDefault("avatar.fullHeight", 150)
	v.SetDefault("avatar.thumbWidth", 50)
	v.SetDefault("avatar.thumbHeight", 50)
	v.SetDefault("avatar.originalMaxWidth", 450)
	v.SetDefault("avatar.originalMaxFilesize", int64(5120000))
	v.SetDefault("avatar.uiAvailableWidth", 0)
	v.SetDefault("avatar.defaultGroupURL", "")
	v.SetDefault("avatar.defaultUserURL", "")

	v.SetDefault("groups.cacheTTL", 5*time.Minute)
	v.SetDefault("notifications.emailOnCreate", false)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "sqlite3")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			BodyLimit:                 v.GetString("server.bodyLimit"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		REST: RESTConfig{
			Namespace: v.GetString("rest.namespace"),
			Version:   v.GetString("rest.version"),
		},
		Avatar: AvatarConfig{
			UploadPath:          v.GetString("avatar.uploadPath"),
			URL:                 strings.TrimRight(v.GetString("avatar.url"), "/"),
			FullWidth:           v.GetInt("avatar.fullWidth"),
			FullHeight:          v.GetInt("avatar.fullHeight"),
			ThumbWidth:          v.GetInt("avatar.thumbWidth"),
			ThumbHeight:         v.GetInt("avatar.thumbHeight"),
			OriginalMaxWidth:    v.GetInt("avatar.originalMaxWidth"),
			OriginalMaxFilesize: v.GetInt64("avatar.originalMaxFilesize"),
			UIAvailableWidth:    v.GetInt("avatar.uiAvailableWidth"),
			DefaultGroupURL:     v.GetString("avatar.defaultGroupURL"),
			DefaultUserURL:      v.GetString("avatar.defaultUserURL"),
		},
		Groups: GroupsConfig{
			CacheTTL: v.GetDuration("groups.cacheTTL"),
		},
		Notifications: NotificationsConfig{
			EmailOnCreate: v.GetBool("notifications.emailOnCreate"),
		},
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// RESTNamespace returns the route prefix of the REST API, e.g. "/buddypress/v1".
func (conf *Config) RESTNamespace() string {
	return "/" + conf.REST.Namespace + "/" + conf.REST.Version
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}
