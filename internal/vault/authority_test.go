package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vaultd/internal/domain"
	"vaultd/internal/relayer/mocks"
	rolestore "vaultd/internal/vault/store"
	dErrors "vaultd/pkg/domain-errors"
)

const (
	owner    = domain.Identity("owner")
	strategy = domain.Identity("strategy")
	relayerA = domain.Identity("relayer")
	alice    = domain.Identity("alice")
)

type AuthoritySuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	client    *mocks.MockClient
	authority *Authority
}

func TestAuthoritySuite(t *testing.T) {
	suite.Run(t, new(AuthoritySuite))
}

func (s *AuthoritySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.client = mocks.NewMockClient(s.ctrl)

	var err error
	s.authority, err = NewAuthority(owner,
		WithStrategyAuthority(strategy),
		WithRelayerClient(s.client),
	)
	s.Require().NoError(err)
}

func (s *AuthoritySuite) TearDownTest() {
	s.ctrl.Finish()
}

// registerRelayer installs relayerA, consuming the validation probe.
func (s *AuthoritySuite) registerRelayer() {
	s.client.EXPECT().Initiator(gomock.Any()).Return(alice, nil)
	s.Require().NoError(s.authority.SetRelayer(context.Background(), owner, relayerA))
}

// =============================================================================
// Construction
// =============================================================================

func (s *AuthoritySuite) TestNewAuthority() {
	s.Run("empty owner is rejected", func() {
		_, err := NewAuthority("")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Resolve
// =============================================================================

func (s *AuthoritySuite) TestResolve() {
	ctx := context.Background()

	s.Run("passes through when no relayer is registered", func() {
		effective, err := s.authority.Resolve(ctx, alice)
		s.NoError(err)
		s.Equal(alice, effective)
	})

	s.Run("passes through non-relayer callers", func() {
		s.registerRelayer()

		effective, err := s.authority.Resolve(ctx, alice)
		s.NoError(err)
		s.Equal(alice, effective)
	})

	s.Run("substitutes the initiator for relayer calls", func() {
		s.client.EXPECT().Initiator(gomock.Any()).Return(alice, nil)

		effective, err := s.authority.Resolve(ctx, relayerA)
		s.NoError(err)
		s.Equal(alice, effective)
	})

	s.Run("relayer failure is unauthorized", func() {
		s.client.EXPECT().Initiator(gomock.Any()).Return(domain.Identity(""), errors.New("connection refused"))

		_, err := s.authority.Resolve(ctx, relayerA)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty initiator is unauthorized", func() {
		s.client.EXPECT().Initiator(gomock.Any()).Return(domain.Identity(""), nil)

		_, err := s.authority.Resolve(ctx, relayerA)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// Role gates
// =============================================================================

func (s *AuthoritySuite) TestRequireOwner() {
	ctx := context.Background()

	effective, err := s.authority.RequireOwner(ctx, owner)
	s.NoError(err)
	s.Equal(owner, effective)

	_, err = s.authority.RequireOwner(ctx, alice)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Contains(err.Error(), "owning authority")
}

func (s *AuthoritySuite) TestRequireStrategy() {
	ctx := context.Background()

	effective, err := s.authority.RequireStrategy(ctx, strategy)
	s.NoError(err)
	s.Equal(strategy, effective)

	_, err = s.authority.RequireStrategy(ctx, owner)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *AuthoritySuite) TestRequireStrategyUnset() {
	authority, err := NewAuthority(owner)
	s.Require().NoError(err)

	_, err = authority.RequireStrategy(context.Background(), strategy)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// =============================================================================
// Role updates
// =============================================================================

func (s *AuthoritySuite) TestTransferOwnership() {
	ctx := context.Background()

	s.Run("non-owner cannot transfer", func() {
		err := s.authority.TransferOwnership(ctx, alice, alice)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("empty new owner is rejected", func() {
		err := s.authority.TransferOwnership(ctx, owner, "")
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("old owner loses the role", func() {
		s.Require().NoError(s.authority.TransferOwnership(ctx, owner, alice))
		s.Equal(alice, s.authority.Roles().Owner)

		err := s.authority.TransferOwnership(ctx, owner, owner)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *AuthoritySuite) TestSetRelayer() {
	ctx := context.Background()

	s.Run("probes the candidate before accepting", func() {
		s.registerRelayer()
		s.Equal(relayerA, s.authority.Roles().Relayer)
	})

	s.Run("failed probe rejects the candidate", func() {
		s.client.EXPECT().Initiator(gomock.Any()).Return(domain.Identity(""), errors.New("timeout"))

		err := s.authority.SetRelayer(ctx, owner, domain.Identity("other"))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(relayerA, s.authority.Roles().Relayer)
	})

	s.Run("empty candidate disables indirection without a probe", func() {
		s.Require().NoError(s.authority.SetRelayer(ctx, owner, ""))
		s.True(s.authority.Roles().Relayer.IsZero())

		effective, err := s.authority.Resolve(ctx, relayerA)
		s.NoError(err)
		s.Equal(relayerA, effective)
	})
}

// =============================================================================
// Role persistence
// =============================================================================

func (s *AuthoritySuite) TestRolesSurviveRestart() {
	ctx := context.Background()
	keep := rolestore.NewInMemory()

	first, err := NewAuthority(owner,
		WithStrategyAuthority(strategy),
		WithRelayerClient(s.client),
		WithRoleStore(keep),
	)
	s.Require().NoError(err)
	s.Require().NoError(first.Restore(ctx))

	s.Require().NoError(first.TransferOwnership(ctx, owner, alice))
	s.Require().NoError(first.SetStrategyAuthority(ctx, alice, "yield-runner"))

	// A rebuild from boot configuration adopts the saved roles, not the
	// configured ones.
	second, err := NewAuthority(owner,
		WithStrategyAuthority(strategy),
		WithRoleStore(keep),
	)
	s.Require().NoError(err)
	s.Require().NoError(second.Restore(ctx))

	roles := second.Roles()
	s.Equal(alice, roles.Owner)
	s.Equal(domain.Identity("yield-runner"), roles.StrategyAuthority)

	_, err = second.RequireOwner(ctx, owner)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = second.RequireOwner(ctx, alice)
	s.NoError(err)
}

func (s *AuthoritySuite) TestRestoreSeedsFirstBoot() {
	ctx := context.Background()
	keep := rolestore.NewInMemory()

	first, err := NewAuthority(owner, WithStrategyAuthority(strategy), WithRoleStore(keep))
	s.Require().NoError(err)
	s.Require().NoError(first.Restore(ctx))

	saved, found, err := keep.Load(ctx)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(owner, saved.Owner)
	s.Equal(strategy, saved.Strategy)
}

func (s *AuthoritySuite) TestFailedPersistKeepsOldRole() {
	ctx := context.Background()

	authority, err := NewAuthority(owner, WithRoleStore(failingRoleStore{}))
	s.Require().NoError(err)

	err = authority.TransferOwnership(ctx, owner, alice)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(owner, authority.Roles().Owner)
}

type failingRoleStore struct{}

func (failingRoleStore) Load(context.Context) (rolestore.Roles, bool, error) {
	return rolestore.Roles{}, false, nil
}

func (failingRoleStore) Save(context.Context, rolestore.Roles) error {
	return errors.New("disk on fire")
}
