// Package postgres moves tenant-scoped rows between the shared store and a
// dedicated store. The copy never mutates the source; removal of shared
// rows after a verified promotion is a manual operator action.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
)

// TenantTables lists the data-plane tables carrying a tenant_slug column,
// in an order that satisfies foreign keys on insert.
var TenantTables = []string{
	"users",
	"projects",
	"ideas",
	"audit_logs",
	"compliance_records",
}

// Mover implements provisioning.DataMover with per-table copies executed in
// one destination transaction.
type Mover struct {
	user     string
	password string
	sslMode  string
	tables   []string
}

func NewMover(user, password, sslMode string) *Mover {
	return &Mover{
		user:     user,
		password: password,
		sslMode:  sslMode,
		tables:   TenantTables,
	}
}

func (m *Mover) connString(ref provisioning.DatabaseRef) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		m.user, m.password, ref.Host, ref.Port, ref.Name, m.sslMode)
}

// CopyTenantRows copies every tenant-scoped row from source to dest inside
// a single destination transaction and returns the number of rows written.
// A failure rolls the destination back; the source is read-only throughout.
func (m *Mover) CopyTenantRows(ctx context.Context, source, dest provisioning.DatabaseRef, tenantSlug string) (int64, error) {
	src, err := pgx.Connect(ctx, m.connString(source))
	if err != nil {
		return 0, fmt.Errorf("connect source: %w", err)
	}
	defer src.Close(ctx)

	dst, err := pgx.Connect(ctx, m.connString(dest))
	if err != nil {
		return 0, fmt.Errorf("connect destination: %w", err)
	}
	defer dst.Close(ctx)

	tx, err := dst.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin destination transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, table := range m.tables {
		copied, err := m.copyTable(ctx, src, tx, table, tenantSlug)
		if err != nil {
			return 0, fmt.Errorf("copy %s: %w", table, err)
		}
		total += copied
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit destination transaction: %w", err)
	}
	return total, nil
}

func (m *Mover) copyTable(ctx context.Context, src *pgx.Conn, tx pgx.Tx, table, tenantSlug string) (int64, error) {
	rows, err := src.Query(ctx,
		fmt.Sprintf("SELECT * FROM %q WHERE tenant_slug = $1", table), tenantSlug)
	if err != nil {
		return 0, fmt.Errorf("read source rows: %w", err)
	}
	defer rows.Close()

	var insert string
	var copied int64
	for rows.Next() {
		if insert == "" {
			insert = buildInsert(table, rows.FieldDescriptions())
		}
		values, err := rows.Values()
		if err != nil {
			return 0, fmt.Errorf("scan source row: %w", err)
		}
		if _, err := tx.Exec(ctx, insert, values...); err != nil {
			return 0, fmt.Errorf("write destination row: %w", err)
		}
		copied++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate source rows: %w", err)
	}
	return copied, nil
}

func buildInsert(table string, fields []pgconn.FieldDescription) string {
	cols := make([]string, 0, len(fields))
	params := make([]string, 0, len(fields))
	for i, fd := range fields {
		cols = append(cols, fmt.Sprintf("%q", fd.Name))
		params = append(params, fmt.Sprintf("$%d", i+1))
	}
	return fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(params, ", "))
}

// CountTenantRows sums the tenant's rows across all tenant-scoped tables.
func (m *Mover) CountTenantRows(ctx context.Context, ref provisioning.DatabaseRef, tenantSlug string) (int64, error) {
	conn, err := pgx.Connect(ctx, m.connString(ref))
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	var total int64
	for _, table := range m.tables {
		var count int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE tenant_slug = $1", table)
		if err := conn.QueryRow(ctx, query, tenantSlug).Scan(&count); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
		total += count
	}
	return total, nil
}
