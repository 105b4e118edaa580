// Package postgres provisions dedicated database principals and logical
// databases on the isolated-tenant cluster through an admin connection.
package postgres

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
	"github.com/n2nstreams/saasfactory-cloud/sql/tenantschema"
)

// Config carries the admin connection details for the dedicated cluster.
type Config struct {
	AdminConnString string
	Host            string
	Port            int
	AdminUser       string
	AdminPassword   string
	SSLMode         string
}

// Adapter implements provisioning.CredentialIssuer and
// provisioning.StoreProvisioner against a PostgreSQL cluster.
type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// UserName returns the dedicated principal name for a tenant.
func UserName(tenantSlug string) string {
	return "factory_tenant_" + sanitize(tenantSlug)
}

// DatabaseName returns the dedicated database name for a tenant.
func DatabaseName(tenantSlug string) string {
	return "factory_tenant_" + sanitize(tenantSlug)
}

// sanitize maps a slug to a safe SQL identifier fragment. Slugs are already
// restricted to [a-z0-9-] by the validator; hyphens become underscores.
func sanitize(slug string) string {
	return strings.ReplaceAll(slug, "-", "_")
}

// CreateUser issues a dedicated principal with a freshly generated secret.
// Idempotent: an existing principal gets its password rotated so a retried
// promotion never fails on a leftover role.
func (a *Adapter) CreateUser(ctx context.Context, tenantSlug string) (provisioning.Credentials, error) {
	conn, err := pgx.Connect(ctx, a.cfg.AdminConnString)
	if err != nil {
		return provisioning.Credentials{}, fmt.Errorf("connect to admin db: %w", err)
	}
	defer conn.Close(ctx)

	userName := UserName(tenantSlug)
	secret, err := generateSecret()
	if err != nil {
		return provisioning.Credentials{}, fmt.Errorf("generate secret: %w", err)
	}

	var exists bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname=$1)", userName).Scan(&exists); err != nil {
		return provisioning.Credentials{}, fmt.Errorf("check role existence: %w", err)
	}

	// Identifiers cannot be parameterized; userName is derived from the
	// validated slug grammar and the secret is machine-generated base64.
	if !exists {
		query := fmt.Sprintf("CREATE USER %q WITH PASSWORD '%s'", userName, secret)
		if _, err := conn.Exec(ctx, query); err != nil {
			return provisioning.Credentials{}, fmt.Errorf("create role: %w", err)
		}
	} else {
		query := fmt.Sprintf("ALTER USER %q WITH PASSWORD '%s'", userName, secret)
		if _, err := conn.Exec(ctx, query); err != nil {
			return provisioning.Credentials{}, fmt.Errorf("rotate role password: %w", err)
		}
	}

	return provisioning.Credentials{Username: userName, Secret: secret}, nil
}

// CreateDatabase creates the isolated logical database owned by the
// tenant's principal. Idempotent: an existing database has its owner
// re-asserted instead of failing.
func (a *Adapter) CreateDatabase(ctx context.Context, tenantSlug, owner string) (provisioning.DatabaseRef, error) {
	conn, err := pgx.Connect(ctx, a.cfg.AdminConnString)
	if err != nil {
		return provisioning.DatabaseRef{}, fmt.Errorf("connect to admin db: %w", err)
	}
	defer conn.Close(ctx)

	dbName := DatabaseName(tenantSlug)

	var exists bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname=$1)", dbName).Scan(&exists); err != nil {
		return provisioning.DatabaseRef{}, fmt.Errorf("check database existence: %w", err)
	}

	if !exists {
		query := fmt.Sprintf("CREATE DATABASE %q OWNER %q", dbName, owner)
		if _, err := conn.Exec(ctx, query); err != nil {
			return provisioning.DatabaseRef{}, fmt.Errorf("create database: %w", err)
		}
	} else {
		query := fmt.Sprintf("ALTER DATABASE %q OWNER TO %q", dbName, owner)
		if _, err := conn.Exec(ctx, query); err != nil {
			return provisioning.DatabaseRef{}, fmt.Errorf("set database owner: %w", err)
		}
	}

	if err := a.applySchema(dbName); err != nil {
		return provisioning.DatabaseRef{}, fmt.Errorf("apply tenant schema: %w", err)
	}

	if err := a.grantSchemaAccess(ctx, dbName, owner); err != nil {
		return provisioning.DatabaseRef{}, fmt.Errorf("grant schema access: %w", err)
	}

	return provisioning.DatabaseRef{
		Host: a.cfg.Host,
		Port: a.cfg.Port,
		Name: dbName,
	}, nil
}

// applySchema brings the freshly created database up to the current
// tenant schema version using the embedded migration set.
func (a *Adapter) applySchema(dbName string) error {
	src, err := iofs.New(tenantschema.FS, ".")
	if err != nil {
		return fmt.Errorf("load embedded schema: %w", err)
	}

	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		a.cfg.AdminUser, a.cfg.AdminPassword, a.cfg.Host, a.cfg.Port, dbName, a.cfg.SSLMode)

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run schema migrations: %w", err)
	}
	return nil
}

// grantSchemaAccess opens the grants on the freshly migrated database.
// Owning the database does not extend to tables created by the admin
// principal that ran the migrations, so the tenant role needs explicit
// grants on existing objects plus default privileges for future ones.
func (a *Adapter) grantSchemaAccess(ctx context.Context, dbName, owner string) error {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		a.cfg.AdminUser, a.cfg.AdminPassword, a.cfg.Host, a.cfg.Port, dbName, a.cfg.SSLMode)

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("connect to tenant db: %w", err)
	}
	defer conn.Close(ctx)

	grants := []string{
		fmt.Sprintf("GRANT USAGE, CREATE ON SCHEMA public TO %q", owner),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON ALL TABLES IN SCHEMA public TO %q", owner),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON ALL SEQUENCES IN SCHEMA public TO %q", owner),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT ALL PRIVILEGES ON TABLES TO %q", owner),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA public GRANT ALL PRIVILEGES ON SEQUENCES TO %q", owner),
	}
	for _, grant := range grants {
		if _, err := conn.Exec(ctx, grant); err != nil {
			return fmt.Errorf("exec grant: %w", err)
		}
	}
	return nil
}

func generateSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
