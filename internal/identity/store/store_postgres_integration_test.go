//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"governa/internal/identity/models"
	"governa/internal/identity/store"
	"governa/internal/sentinel"
	id "governa/pkg/domain"
	"governa/pkg/testutil"
	"governa/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestInsertAndGet() {
	ctx := context.Background()
	identity := testutil.NewIdentity(s.T(), models.DepartmentEngineering, "Slack:general", "GitHub:Engineering")
	s.Require().NoError(s.store.Insert(ctx, identity))

	byID, err := s.store.GetByID(ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(identity.EmployeeID, byID.EmployeeID)
	s.Equal(models.StatusActive, byID.Status)
	s.Equal([]string{"GitHub:Engineering", "Slack:general"}, byID.Entitlements)

	byEmployee, err := s.store.GetByEmployeeID(ctx, identity.EmployeeID)
	s.Require().NoError(err)
	s.Equal(identity.ID, byEmployee.ID)

	_, err = s.store.GetByID(ctx, id.NewIdentityID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateEmployeeIDConflicts() {
	ctx := context.Background()
	identity := testutil.NewIdentity(s.T(), models.DepartmentSales)
	s.Require().NoError(s.store.Insert(ctx, identity))

	dup := testutil.NewIdentity(s.T(), models.DepartmentSales)
	dup.EmployeeID = identity.EmployeeID
	s.ErrorIs(s.store.Insert(ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	identity := testutil.NewIdentity(s.T(), models.DepartmentMarketing, "Slack:marketing")
	s.Require().NoError(s.store.Insert(ctx, identity))

	identity.JobTitle = "Director"
	identity.MarkTerminated()
	identity.UpdatedAt = time.Now()
	s.Require().NoError(s.store.Update(ctx, identity))

	got, err := s.store.GetByID(ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal("Director", got.JobTitle)
	s.Equal(models.StatusTerminated, got.Status)
	s.Empty(got.Entitlements)

	ghost := testutil.NewIdentity(s.T(), models.DepartmentHR)
	s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListOldestFirst() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	first := testutil.NewIdentity(s.T(), models.DepartmentEngineering)
	first.CreatedAt = base
	second := testutil.NewIdentity(s.T(), models.DepartmentSales)
	second.CreatedAt = base.Add(time.Minute)
	s.Require().NoError(s.store.Insert(ctx, second))
	s.Require().NoError(s.store.Insert(ctx, first))

	identities, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(identities, 2)
	s.Equal(first.ID, identities[0].ID)
	s.Equal(second.ID, identities[1].ID)
}
