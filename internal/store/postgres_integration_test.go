package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tournevent/fulfillment/internal/store"
	"gorm.io/gorm"
)

// PostgresStoreIntegrationTestSuite runs the store contract against a
// PostgreSQL container.
type PostgresStoreIntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *gorm.DB
	store     *store.Postgres
}

func (suite *PostgresStoreIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("fulfillment"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := store.OpenPostgres(connStr)
	suite.Require().NoError(err)
	suite.db = db

	suite.store = store.NewPostgres(db)
	suite.Require().NoError(suite.store.Migrate(ctx))
}

func (suite *PostgresStoreIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE records").Error)
}

func (suite *PostgresStoreIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *PostgresStoreIntegrationTestSuite) TestCreateAndFindByField() {
	ctx := context.Background()

	created, err := suite.store.Create(ctx, "Shipping Orders", store.Fields{"Order ID": "1001", "Status": "pending"})
	suite.Require().NoError(err)
	_, err = suite.store.Create(ctx, "Shipping Orders", store.Fields{"Order ID": "1002", "Status": "shipped"})
	suite.Require().NoError(err)
	_, err = suite.store.Create(ctx, "Status History", store.Fields{"Order ID": "1001", "To": "pending"})
	suite.Require().NoError(err)

	found, err := suite.store.Find(ctx, "Shipping Orders", store.Filter{Field: "Order ID", Values: []string{"1001"}})
	suite.Require().NoError(err)
	suite.Require().Len(found, 1)
	suite.Equal(created.ID, found[0].ID)
	suite.Equal("pending", found[0].Fields["Status"])

	all, err := suite.store.Find(ctx, "Shipping Orders", store.Filter{})
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *PostgresStoreIntegrationTestSuite) TestUpdateMergesFields() {
	ctx := context.Background()

	created, err := suite.store.Create(ctx, "Shipping Orders", store.Fields{
		"Order ID": "1001", "Status": "pending", "Email": "jane@example.com",
	})
	suite.Require().NoError(err)

	updated, err := suite.store.Update(ctx, "Shipping Orders", created.ID, store.Fields{
		"Status": "processing", "Tracking Number": "1Z999",
	})
	suite.Require().NoError(err)
	suite.Equal("processing", updated.Fields["Status"])
	suite.Equal("jane@example.com", updated.Fields["Email"])

	found, err := suite.store.Find(ctx, "Shipping Orders", store.Filter{Field: "Status", Values: []string{"processing"}})
	suite.Require().NoError(err)
	suite.Require().Len(found, 1)
	suite.Equal("1Z999", found[0].Fields["Tracking Number"])
}

func (suite *PostgresStoreIntegrationTestSuite) TestUpdateNotFound() {
	ctx := context.Background()

	_, err := suite.store.Update(ctx, "Shipping Orders", "00000000-0000-0000-0000-000000000001", store.Fields{"Status": "failed"})
	suite.ErrorIs(err, store.ErrNotFound)

	_, err = suite.store.Update(ctx, "Shipping Orders", "not-a-uuid", store.Fields{"Status": "failed"})
	suite.ErrorIs(err, store.ErrNotFound)
}

func TestPostgresStoreIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	suite.Run(t, new(PostgresStoreIntegrationTestSuite))
}
