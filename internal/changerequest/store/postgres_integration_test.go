//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"crboard/internal/changerequest/store/migrations"
	"crboard/internal/platform/postgres"
	"crboard/pkg/testutil/containers"
)

type PostgresBackendSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestPostgresBackendSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresBackendSuite))
}

func (s *PostgresBackendSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(s.postgres.DB, migrations.Postgres, "postgres"))
}

func (s *PostgresBackendSuite) fresh(t *testing.T) Backend {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "registry_document"))
	return NewPostgres(s.postgres.DB)
}

func (s *PostgresBackendSuite) TestContract() {
	runBackendContract(s.T(), s.fresh)
}

func (s *PostgresBackendSuite) TestMigrateIsIdempotent() {
	s.NoError(postgres.Migrate(s.postgres.DB, migrations.Postgres, "postgres"))
}

func (s *PostgresBackendSuite) TestStoreRoundTrip() {
	ctx := context.Background()
	st := New(s.fresh(s.T()))

	reg, version, err := st.Load(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), version)

	again, _, err := st.Load(ctx)
	s.Require().NoError(err)
	s.Equal(reg.All(), again.All())
}
