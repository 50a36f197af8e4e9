package credit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesale-hub/settlement/internal/platform/httpx"
	"github.com/wholesale-hub/settlement/internal/shared"
)

func newTestRouter(repo *memoryRepo, now time.Time) http.Handler {
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return now }
	h := NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithUserID(req.Context(), 1)
			if req.Header.Get("X-Staff-Role") == "driver" {
				ctx = shared.ContextWithRole(ctx, shared.RoleDriver)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/credit", h.MountRoutes)
	return r
}

func TestEligibilityEndpointReportsShortfall(t *testing.T) {
	repo := newMemoryRepo()
	acct := NewAccount(1)
	acct.CurrentBalance = dec("450000")
	repo.accounts[1] = acct

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/credit/eligibility", strings.NewReader(`{"amount":"100000"}`))
	newTestRouter(repo, time.Now()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body Eligibility
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Eligible)
	assert.Equal(t, ReasonLimitExceeded, body.Reason)
	assert.True(t, body.Shortfall.Equal(dec("50000")))
}

func TestPaymentEndpointRequiresCapability(t *testing.T) {
	repo := newMemoryRepo()
	acct := NewAccount(1)
	acct.CurrentBalance = dec("10")
	repo.accounts[1] = acct
	router := newTestRouter(repo, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/credit/1/payments", strings.NewReader(`{"amount":"10"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/credit/1/payments", strings.NewReader(`{"amount":"10"}`))
	req.Header.Set("X-Staff-Role", "driver")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRespondRejectionLocalizesAmounts(t *testing.T) {
	rec := httptest.NewRecorder()
	ok := RespondRejection(rec, &CreditLimitExceededError{UserID: 1, Requested: dec("100000"), Available: dec("50000"), Shortfall: dec("50000")})
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, ReasonLimitExceeded, problem.Code)
	assert.Contains(t, problem.Detail, "50,000 SYP")

	assert.False(t, RespondRejection(httptest.NewRecorder(), ErrInvalidAmount))
}

func TestPaymentEndpointRejectsSettledAccount(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[1] = NewAccount(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/credit/1/payments", strings.NewReader(`{"amount":"10"}`))
	req.Header.Set("X-Staff-Role", "driver")
	newTestRouter(repo, time.Now()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "nothing_owed", problem.Code)
}
