package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/compraflow/compraflow-backend/pkg/database"
	"github.com/compraflow/compraflow-backend/pkg/logger"
	"github.com/compraflow/compraflow-backend/pkg/org"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//
//	    suite, err := testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
//
//	func TestSomething(t *testing.T) {
//	    orgID := suite.SetupOrg(t, ctx, "test-org")
//	    ctx := suite.OrgContext(orgID)
//	    // ... run tests against suite.DB
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	// Create wrapped database using DSN
	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	// Apply the replenishment schema (idempotent)
	if err := container.CreateSchema(ctx, db); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// SetupOrg creates an organization for a specific test.
// Each test should use its own organization; RLS keeps them isolated, so no
// per-test teardown is needed.
func (s *IntegrationSuite) SetupOrg(t *testing.T, ctx context.Context, name string) string {
	t.Helper()

	o := s.Fixtures.Organization(func(of *OrganizationFixture) { of.Name = name })
	_, err := s.RawDB.ExecContext(ctx,
		`INSERT INTO organizations (id, name, status) VALUES ($1, $2, $3)`,
		o.ID, o.Name, o.Status)
	if err != nil {
		t.Fatalf("failed to create organization: %v", err)
	}

	return o.ID
}

// SeedSupplier inserts a supplier for the organization and returns its ID
func (s *IntegrationSuite) SeedSupplier(t *testing.T, ctx context.Context, orgID string, f SupplierFixture) string {
	t.Helper()

	err := s.DB.WithOrgTx(ctx, orgID, func(txCtx context.Context) error {
		_, err := s.DB.ExecContext(txCtx,
			`INSERT INTO suppliers (id, organization_id, name, status, is_default)
			 VALUES ($1, $2, $3, $4, $5)`,
			f.ID, orgID, f.Name, f.Status, f.IsDefault)
		return err
	})
	if err != nil {
		t.Fatalf("failed to seed supplier: %v", err)
	}

	return f.ID
}

// SeedItem inserts an item for the organization and returns its ID
func (s *IntegrationSuite) SeedItem(t *testing.T, ctx context.Context, orgID string, f ItemFixture) string {
	t.Helper()

	err := s.DB.WithOrgTx(ctx, orgID, func(txCtx context.Context) error {
		_, err := s.DB.ExecContext(txCtx,
			`INSERT INTO items (id, organization_id, sku, description, balance, min_stock, max_stock, unit_cost_cents, supplier_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			f.ID, orgID, f.SKU, f.Description, f.Balance, f.MinStock, f.MaxStock, f.UnitCostCents, f.SupplierID)
		return err
	})
	if err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}

	return f.ID
}

// OrgContext returns a context scoped to the organization
func (s *IntegrationSuite) OrgContext(orgID string) context.Context {
	return org.WithOrgID(context.Background(), orgID)
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite provides a base for unit tests with mocked dependencies
type UnitTestSuite struct {
	MockDB   *MockDB
	Fixtures *FixtureFactory
	t        *testing.T
}

// NewUnitTestSuite creates a new unit test suite
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{
		MockDB:   NewMockDB(t),
		Fixtures: NewFixtureFactory(),
		t:        t,
	}
}

// Cleanup verifies expectations and cleans up
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsCI returns true if running in CI environment
func IsCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
