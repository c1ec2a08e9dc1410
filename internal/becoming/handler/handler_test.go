package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"becoming/internal/becoming/handler/mocks"
	"becoming/internal/becoming/models"
	id "becoming/pkg/domain"
	dErrors "becoming/pkg/domain-errors"
	"becoming/pkg/platform/events"
	authmw "becoming/pkg/platform/middleware/auth"
	"becoming/pkg/requestcontext"
	"becoming/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

var (
	ownerAccount = id.MustParseAccountID("0x1111111111111111111111111111111111111111111111111111111111111111")
	adminAccount = id.MustParseAccountID("0x2222222222222222222222222222222222222222222222222222222222222222")
	otherAccount = id.MustParseAccountID("0x3333333333333333333333333333333333333333333333333333333333333333")
)

const validHash = "0xABCDEF0123456789abcdef0123456789ABCDEF0123456789abcdef0123456789"

type stubValidator map[string]id.AccountID

func (v stubValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	account, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &authmw.JWTClaims{Account: account, JTI: token}, nil
}

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := stubValidator{"owner-token": ownerAccount, "admin-token": adminAccount, "other-token": otherAccount}

	s.router = chi.NewRouter()
	New(s.service, logger, validator).Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestMint() {
	s.Run("requires a bearer token", func() {
		res := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/mint"), "")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeUnauthorized)
	})

	s.Run("rejects an unknown token", func() {
		res := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/mint"), "forged")
		s.Equal(http.StatusUnauthorized, res.Code)
	})

	s.Run("binds the caller", func() {
		s.service.EXPECT().Mint(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			caller, ok := requestcontext.Caller(ctx)
			s.True(ok)
			s.Equal(ownerAccount, caller)
			return nil
		})

		res := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/mint"), "owner-token")
		s.Equal(http.StatusCreated, res.Code)
		s.JSONEq(`{"owner":"`+ownerAccount.String()+`"}`, res.Body.String())
	})

	s.Run("second mint conflicts", func() {
		s.service.EXPECT().Mint(gomock.Any()).Return(dErrors.New(dErrors.CodeAlreadyBound, "record is already bound to an owner"))

		res := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/mint"), "other-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeAlreadyBound)
	})
}

func (s *HandlerSuite) TestAddMilestone() {
	s.Run("passes the request through and returns the id", func() {
		category := "fitness"
		s.service.EXPECT().AddMilestone(gomock.Any(), &models.AddMilestoneRequest{
			Title:     "First marathon",
			ProofHash: validHash,
			Category:  &category,
		}).Return(uint32(2), nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/milestones", map[string]any{
			"title":      "First marathon",
			"proof_hash": validHash,
			"category":   "fitness",
		})
		res := s.do(req, "owner-token")
		s.Equal(http.StatusCreated, res.Code)
		s.JSONEq(`{"milestone_id":2}`, res.Body.String())
	})

	s.Run("maps NotOwner to forbidden", func() {
		s.service.EXPECT().AddMilestone(gomock.Any(), gomock.Any()).
			Return(uint32(0), dErrors.New(dErrors.CodeNotOwner, "only the owner can add milestones"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/milestones", map[string]any{"title": "x", "proof_hash": validHash})
		res := s.do(req, "other-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeNotOwner)
	})

	s.Run("maps InvalidProofHash to bad request", func() {
		s.service.EXPECT().AddMilestone(gomock.Any(), gomock.Any()).
			Return(uint32(0), dErrors.New(dErrors.CodeInvalidProofHash, "proof hash must be 64 hex characters"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/milestones", map[string]any{"title": "x", "proof_hash": "0x12"})
		res := s.do(req, "owner-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeInvalidProofHash)
	})

	s.Run("malformed body never reaches the service", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/milestones", `{"title":`)
		res := s.do(req, "owner-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeBadRequest)
	})

	s.Run("unknown fields are rejected", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/milestones", `{"title":"x","proof_hash":"`+validHash+`","owner":"me"}`)
		res := s.do(req, "owner-token")
		s.Equal(http.StatusBadRequest, res.Code)
	})
}

func (s *HandlerSuite) TestTip() {
	s.Run("attaches the amount to the call", func() {
		s.service.EXPECT().Tip(gomock.Any(), otherAccount).DoAndReturn(func(ctx context.Context, _ id.AccountID) error {
			s.Equal(id.Balance(250), requestcontext.TransferredValue(ctx))
			return nil
		})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/tip", map[string]any{
			"recipient": otherAccount.String(),
			"amount":    250,
		})
		res := s.do(req, "owner-token")
		s.Equal(http.StatusOK, res.Code)
		s.JSONEq(`{"from":"`+ownerAccount.String()+`","to":"`+otherAccount.String()+`","amount":250}`, res.Body.String())
	})

	s.Run("payment failure maps to 402", func() {
		s.service.EXPECT().Tip(gomock.Any(), otherAccount).
			Return(dErrors.New(dErrors.CodePaymentFailed, "tip transfer failed"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/tip", map[string]any{
			"recipient": otherAccount.String(),
			"amount":    1,
		})
		res := s.do(req, "owner-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodePaymentFailed)
	})

	s.Run("recipient must be an identity", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/tip", map[string]any{"recipient": "bob", "amount": 1})
		res := s.do(req, "owner-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeValidation)
	})
}

func (s *HandlerSuite) TestTransferIsAlwaysRejected() {
	s.service.EXPECT().Transfer(gomock.Any()).
		Return(dErrors.New(dErrors.CodeTransferNotAllowed, "soul-bound records cannot be transferred"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/transfer", map[string]any{"to": otherAccount.String()})
	res := s.do(req, "owner-token")
	testutil.AssertDomainError(s.T(), res, dErrors.CodeTransferNotAllowed)
}

func (s *HandlerSuite) TestPublicReads() {
	s.Run("owner is null before mint", func() {
		s.service.EXPECT().Owner(gomock.Any()).Return(nil, nil)

		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/owner"), "")
		s.Equal(http.StatusOK, res.Code)
		s.JSONEq(`{"owner":null}`, res.Body.String())
	})

	s.Run("stage carries level and name", func() {
		s.service.EXPECT().AvatarStage(gomock.Any()).Return(models.StageHalo, nil)

		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/avatar/stage"), "")
		s.Equal(http.StatusOK, res.Code)
		s.JSONEq(`{"level":3,"name":"HALO"}`, res.Body.String())
	})

	s.Run("milestones include a count", func() {
		ts := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
		s.service.EXPECT().Milestones(gomock.Any()).Return([]models.Milestone{
			{ID: 0, Title: "First marathon", ProofHash: validHash, Timestamp: ts},
		}, nil)

		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/milestones"), "")
		s.Equal(http.StatusOK, res.Code)
		s.JSONEq(`{"count":1,"milestones":[{"id":0,"title":"First marathon","proof_hash":"`+validHash+
			`","description":null,"category":null,"timestamp":"2025-03-01T09:30:00Z"}]}`, res.Body.String())
	})

	s.Run("store failures hide details", func() {
		s.service.EXPECT().Profile(gomock.Any()).Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeInternal, "failed to load record"))

		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/profile"), "")
		s.Equal(http.StatusInternalServerError, res.Code)
		s.NotContains(res.Body.String(), "connection refused")
	})
}

func (s *HandlerSuite) TestNotifications() {
	s.Run("lists events indexed under the account", func() {
		evID := uuid.MustParse("5b0c7a52-94c4-4c1e-9b0e-2f3f0a7c1d11")
		at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
		s.service.EXPECT().Notifications(gomock.Any(), ownerAccount).Return([]events.Event{{
			ID:        evID,
			Name:      models.EventMinted,
			Topics:    []string{ownerAccount.String()},
			Payload:   []byte(`{"owner":"` + ownerAccount.String() + `"}`),
			CreatedAt: at,
		}}, nil)

		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/accounts/"+ownerAccount.String()+"/notifications"), "")
		s.Equal(http.StatusOK, res.Code)
		s.JSONEq(`{"account":"`+ownerAccount.String()+`","count":1,"notifications":[{"id":"`+evID.String()+
			`","name":"Minted","topics":["`+ownerAccount.String()+`"],"payload":{"owner":"`+ownerAccount.String()+
			`"},"created_at":"2025-03-01T09:30:00Z"}]}`, res.Body.String())
	})

	s.Run("rejects a malformed account", func() {
		res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/accounts/0x12/notifications"), "")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeValidation)
	})
}

func (s *HandlerSuite) TestUpdateAdmin() {
	s.Run("rotates to the supplied identity", func() {
		s.service.EXPECT().UpdateAdmin(gomock.Any(), otherAccount).Return(nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/admin", map[string]any{"new_admin": otherAccount.String()})
		res := s.do(req, "admin-token")
		s.Equal(http.StatusOK, res.Code)
		s.JSONEq(`{"admin":"`+otherAccount.String()+`"}`, res.Body.String())
	})

	s.Run("non admin is forbidden", func() {
		s.service.EXPECT().UpdateAdmin(gomock.Any(), otherAccount).Return(dErrors.New(dErrors.CodeNotAdmin, "caller is not the admin"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/admin", map[string]any{"new_admin": otherAccount.String()})
		res := s.do(req, "owner-token")
		testutil.AssertDomainError(s.T(), res, dErrors.CodeNotAdmin)
	})

	s.Run("missing identity is a validation error", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/v1/admin", map[string]any{})
		res := s.do(req, "admin-token")
		s.Equal(http.StatusBadRequest, res.Code)
	})
}

func TestExportDataGolden(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	owner := ownerAccount
	svc.EXPECT().ExportData(gomock.Any()).Return(&models.ExportData{
		Owner: &owner,
		Milestones: []models.ExportedMilestone{
			{Title: "First marathon", ProofHash: validHash},
			{Title: "", ProofHash: strings.Repeat("0", 64)},
		},
	}, nil)

	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), stubValidator{"admin-token": adminAccount}).Register(r)

	req := testutil.NewRequest(t, http.MethodGet, "/v1/admin/export")
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := testutil.DoRequest(r, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export_data", rr.Body.Bytes())
}

func TestHandleMintDirect(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	svc.EXPECT().Mint(gomock.Any()).Return(nil)

	req := testutil.WithCaller(testutil.NewRequest(t, http.MethodPost, "/v1/mint"), ownerAccount)
	rr := httptest.NewRecorder()
	h.handleMint(rr, req)

	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr, "owner", ownerAccount.String())
}

func TestLimitOptionsWrapRouteGroups(t *testing.T) {
	reject := func(status int) func(http.Handler) http.Handler {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			})
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := mocks.NewMockService(gomock.NewController(t))
	router := chi.NewRouter()
	New(service, logger, stubValidator{"owner-token": ownerAccount},
		WithReadLimit(reject(http.StatusTooManyRequests)),
		WithWriteLimit(reject(http.StatusTeapot)),
	).Register(router)

	res := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/owner"))
	assert.Equal(t, http.StatusTooManyRequests, res.Code)

	// Authentication runs before the write limit.
	res = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/v1/mint"))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	req := testutil.NewRequest(t, http.MethodPost, "/v1/mint")
	req.Header.Set("Authorization", "Bearer owner-token")
	res = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusTeapot, res.Code)
}
