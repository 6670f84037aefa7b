package model

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/build_info"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	l "github.com/chainwatch/utxo-syncer/src/utils/logger"
	"github.com/chainwatch/utxo-syncer/src/utils/model/sql_migrations"
	"github.com/chainwatch/utxo-syncer/src/utils/task"

	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Value in a libpq keyword/value connection string
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func dsn(dbConfig *config.Database, username, password, applicationName string) string {
	params := [][2]string{
		{"host", dbConfig.Host},
		{"port", fmt.Sprint(dbConfig.Port)},
		{"user", username},
		{"password", password},
		{"dbname", dbConfig.Name},
		{"sslmode", dbConfig.SslMode},
		{"application_name", applicationName + "/utxo-syncer/" + build_info.Version},
	}

	// Client certificates are used only if all of them are set
	if dbConfig.CaCertPath != "" && dbConfig.ClientKeyPath != "" && dbConfig.ClientCertPath != "" {
		params = append(params,
			[2]string{"sslcert", dbConfig.ClientCertPath},
			[2]string{"sslkey", dbConfig.ClientKeyPath},
			[2]string{"sslrootcert", dbConfig.CaCertPath},
		)
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+quote(p[1]))
	}
	return strings.Join(parts, " ")
}

// Gorm logger writing through logrus. Slow queries are reported in development.
func NewLogger(config *config.Config) logger.Interface {
	level := logger.Error
	if config.IsDevelopment {
		level = logger.Warn
	}

	return logger.New(l.NewSublogger("db"),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Opens a connection pool and waits till the database answers, at most Database.ConnectMaxElapsedTime
func Connect(ctx context.Context, config *config.Config, username, password, applicationName string) (out *gorm.DB, err error) {
	log := l.NewSublogger("db")
	dbConfig := &config.Database

	err = task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(dbConfig.ConnectMaxElapsedTime).
		WithMaxInterval(5 * time.Second).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			log.WithError(err).WithField("host", dbConfig.Host).Warn("Failed to connect to database, retrying")
			return err
		}).
		Run(func() (err error) {
			out, err = open(ctx, config, username, password, applicationName)
			return
		})
	return
}

func open(ctx context.Context, config *config.Config, username, password, applicationName string) (self *gorm.DB, err error) {
	dbConfig := &config.Database

	self, err = gorm.Open(postgres.Open(dsn(dbConfig, username, password, applicationName)), &gorm.Config{
		Logger: NewLogger(config),
	})
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	err = ping(ctx, dbConfig, self)
	if err != nil {
		db.Close()
		return nil, err
	}
	return
}

// Applies migrations and connects with the regular user
func NewConnection(ctx context.Context, config *config.Config, applicationName string) (self *gorm.DB, err error) {
	err = Migrate(ctx, config)
	if err != nil {
		return
	}

	return Connect(ctx, config, config.Database.User, config.Database.Password, applicationName)
}

// Migrations of blocks, transactions and coins tables
func MigrationSource() migrate.MigrationSource {
	return &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(sql_migrations.FS),
	}
}

// Runs pending migrations as the migration user, skipped if it isn't configured
func Migrate(ctx context.Context, config *config.Config) (err error) {
	log := l.NewSublogger("db-migrate")

	if config.Database.MigrationUser == "" || config.Database.MigrationPassword == "" {
		log.Info("Migration user not set, skipping migrations")
		return
	}

	self, err := Connect(ctx, config, config.Database.MigrationUser, config.Database.MigrationPassword, "migration")
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}
	defer db.Close()

	n, err := migrate.Exec(db, "postgres", MigrationSource(), migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.WithField("num", n).Info("Applied migrations")

	// Migration credentials aren't needed anymore
	config.Database.MigrationUser = ""
	config.Database.MigrationPassword = ""

	return
}

// Negative PingTimeout disables the check
func ping(ctx context.Context, dbConfig *config.Database, db *gorm.DB) (err error) {
	if dbConfig.PingTimeout < 0 {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbConfig.PingTimeout)
	defer cancel()

	return sqlDB.PingContext(dbCtx)
}
