package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hoangnm/court-booking/internal/utils"
)

const testSecret = "jwt-test-secret"

func protected(t *testing.T, mws ...echo.MiddlewareFunc) (*echo.Echo, func(token string) *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	g := e.Group("/v1", mws...)
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": UserID(c)})
	})
	return e, func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	_, do := protected(t, JWTAuth(testSecret))
	tok, err := utils.NewAccessToken(testSecret, "user-42", "CUSTOMER", 5)
	if err != nil {
		t.Fatal(err)
	}
	rec := do(tok.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	_, do := protected(t, JWTAuth(testSecret))
	if rec := do(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	_, do := protected(t, JWTAuth(testSecret))
	tok, err := utils.NewAccessToken("another-secret", "user-42", "CUSTOMER", 5)
	if err != nil {
		t.Fatal(err)
	}
	if rec := do(tok.Token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	_, do := protected(t, JWTAuth(testSecret), RequireRole("OWNER"))

	owner, _ := utils.NewAccessToken(testSecret, "user-1", "OWNER", 5)
	if rec := do(owner.Token); rec.Code != http.StatusOK {
		t.Fatalf("owner expected 200, got %d", rec.Code)
	}

	customer, _ := utils.NewAccessToken(testSecret, "user-2", "CUSTOMER", 5)
	if rec := do(customer.Token); rec.Code != http.StatusForbidden {
		t.Fatalf("customer expected 403, got %d", rec.Code)
	}
}
