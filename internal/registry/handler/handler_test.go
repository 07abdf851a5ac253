package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vaultd/internal/domain"
	"vaultd/internal/registry"
	registrystore "vaultd/internal/registry/store"
	"vaultd/internal/token"
	"vaultd/internal/vault"
	"vaultd/pkg/platform/tx"
	"vaultd/pkg/testutil"
)

const (
	vaultAccount = "vault"
	owner        = "owner"
)

// HandlerSuite exercises the registry endpoints over a real service with
// in-memory dependencies.
type HandlerSuite struct {
	suite.Suite
	bank   *token.Bank
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.bank = token.NewBank(domain.Identity(vaultAccount))
	s.bank.RegisterAsset("usdc", 6)

	authority, err := vault.NewAuthority(domain.Identity(owner))
	require.NoError(s.T(), err)

	service := registry.New(registrystore.NewInMemory(), s.bank, authority, tx.NewExclusive())

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := New(service, logger)

	r := chi.NewRouter()
	handler.Register(r)
	s.router = r
}

func (s *HandlerSuite) register(caller string, body any) *AssetResponse {
	req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), http.MethodPost, "/assets", body), caller)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[AssetResponse](s.T(), rr)
}

func (s *HandlerSuite) TestRegisterAsset() {
	s.Run("owner registers an asset", func() {
		resp := s.register(owner, RegisterAssetRequest{
			Underlying: "usdc", Name: "USD Coin", Symbol: "USDC",
		})
		s.Equal(uint64(1), resp.ID)
		s.Equal("usdc", resp.Underlying)
		s.Equal(uint8(6), resp.Decimals)
	})

	s.Run("non-owner is unauthorized", func() {
		req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), http.MethodPost, "/assets", RegisterAssetRequest{
			Underlying: "usdc", Name: "USD Coin", Symbol: "USDC",
		}), "alice")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("duplicate underlying conflicts", func() {
		req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), http.MethodPost, "/assets", RegisterAssetRequest{
			Underlying: "usdc", Name: "USD Coin", Symbol: "USDC",
		}), owner)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("missing underlying fails validation", func() {
		req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), http.MethodPost, "/assets", RegisterAssetRequest{
			Name: "USD Coin", Symbol: "USDC",
		}), owner)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "validation_failed")
	})

	s.Run("invalid JSON is a bad request", func() {
		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/assets", "not json"), owner)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestReadEndpoints() {
	s.register(owner, RegisterAssetRequest{Underlying: "usdc", Name: "USD Coin", Symbol: "USDC"})

	s.Run("get by id", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/assets/1"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[AssetResponse](s.T(), rr)
		s.Equal("usdc", resp.Underlying)
	})

	s.Run("unknown id is not found", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/assets/42"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("id zero fails validation", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/assets/0"))
		testutil.AssertStatus(s.T(), rr, http.StatusUnprocessableEntity)
	})

	s.Run("list returns registration order", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/assets"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[[]AssetResponse](s.T(), rr)
		s.Len(*resp, 1)
	})

	s.Run("resolve known underlying", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/assets/resolve?underlying=usdc"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ResolveResponse](s.T(), rr)
		s.Equal(uint64(1), resp.ID)
	})

	s.Run("resolve unknown underlying yields id zero", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/assets/resolve?underlying=ghost"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ResolveResponse](s.T(), rr)
		s.Equal(uint64(0), resp.ID)
	})
}
