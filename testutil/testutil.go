package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
)

// NewConfig returns the configuration used by the tests. It does not read the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		AppName:          "Academia",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Academia", Address: "noreply@academia.test"},
		Database: core.DatabaseConfig{
			Engine:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			Name:       os.Getenv("TEST_DATABASE_NAME"),
			User:       "academia",
			Password:   "academia",
			AdminUser:  "postgres",
			DisableTLS: true,
		},
		Server: core.ServerConfig{
			Host:               "localhost",
			Port:               "8000",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			ShutdownTimeout:    5 * time.Second,
			JWTExpirationDelta: time.Hour,
			DisableRequestLogs: true,
		},
		Upload: core.UploadConfig{
			MaxFileSize:       1 << 20,
			SendWelcomeEmails: true,
		},
	}
}

// NewLogger returns a silent logger that never reports to rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// ParseEmailTemplates loads the embedded email templates.
func ParseEmailTemplates(conf *core.Config) {
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, NewLogger(conf))
}

// PrepareDB opens a migrated, empty test database. The test is skipped unless TEST_DATABASE_NAME is set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig()
	if conf.Database.Name == "" {
		t.Skip("TEST_DATABASE_NAME not set")
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.RunMigrations(db.DB, "reset"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
