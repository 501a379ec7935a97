// Package testinfra boots a migrated Postgres for repository integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"jobflow_backend/migrations"
	"jobflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DatabaseURLEnv points tests at an existing database instead of a container.
const DatabaseURLEnv = "TEST_DATABASE_URL"

type dsnConfig string

func (d dsnConfig) GetDatabaseURL() string { return string(d) }

// Postgres returns a pool on a freshly migrated database. The test is skipped
// in -short mode or when neither TEST_DATABASE_URL nor Docker is available.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv(DatabaseURLEnv)
	if dsn == "" {
		container, err := runContainer(ctx)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("resolve connection string: %v", err)
		}
	}

	if _, err := db.RunMigrations(ctx, dsnConfig(dsn), migrations.FS); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse pgx config: %v", err)
	}
	cfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// runContainer starts Postgres 16. Docker host discovery panics when no
// daemon is reachable, so that is reported as an error too.
func runContainer(ctx context.Context) (container *postgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()
	return postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("jobflow"),
		postgres.WithUsername("jobflow"),
		postgres.WithPassword("jobflow"),
		postgres.BasicWaitStrategies(),
	)
}

// Fixture is a seeded job with its people.
type Fixture struct {
	JobID      uuid.UUID
	CustomerID uuid.UUID
	ProID      uuid.UUID
	AccountID  uuid.UUID
	MemberID   uuid.UUID
}

// SeedJob inserts a customer, a pro and a job in status with the given quote.
// When business is true the job sits on a property of a business account with one member.
func SeedJob(t *testing.T, pool *pgxpool.Pool, status string, originalCents int64, business bool) Fixture {
	t.Helper()
	ctx := context.Background()
	f := Fixture{JobID: uuid.New(), CustomerID: uuid.New(), ProID: uuid.New()}

	mustExec(t, pool, `INSERT INTO users (id, email, phone, display_name) VALUES ($1, $2, $3, 'Customer'), ($4, $5, $6, 'Pro')`,
		f.CustomerID, "customer-"+f.CustomerID.String()+"@example.com", "+16502530000",
		f.ProID, "pro-"+f.ProID.String()+"@example.com", "+16502530001")

	var propertyID *uuid.UUID
	if business {
		f.AccountID = uuid.New()
		f.MemberID = uuid.New()
		prop := uuid.New()
		propertyID = &prop
		mustExec(t, pool, `INSERT INTO users (id, email, display_name) VALUES ($1, $2, 'Manager')`,
			f.MemberID, "pm-"+f.MemberID.String()+"@example.com")
		mustExec(t, pool, `INSERT INTO business_accounts (id, name) VALUES ($1, 'Acme Properties')`, f.AccountID)
		mustExec(t, pool, `INSERT INTO business_account_members (business_account_id, user_id) VALUES ($1, $2)`, f.AccountID, f.MemberID)
		mustExec(t, pool, `INSERT INTO business_properties (id, business_account_id, label) VALUES ($1, $2, 'Unit 4')`, prop, f.AccountID)
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO service_requests (id, customer_id, assigned_pro_id, property_id, service_type, status, original_price_cents)
		 VALUES ($1, $2, $3, $4, 'junk_removal', $5, $6)`,
		f.JobID, f.CustomerID, f.ProID, propertyID, status, originalCents,
	); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return f
}

func mustExec(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("seed %s: %v", fmt.Sprintf("%.40s", sql), err)
	}
}
