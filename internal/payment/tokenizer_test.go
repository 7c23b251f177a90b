package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderTokenizer(t *testing.T) {
	e := echo.New()
	e.POST("/v1/payment_methods", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer pk_test_1" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid key"})
		}
		if c.FormValue("card[cvc]") != "123" || c.FormValue("type") != "card" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad card"})
		}
		return c.JSON(http.StatusOK, echo.Map{"id": "pm_1", "billing": c.FormValue("billing_details[email]")})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	tok, err := NewProviderTokenizer(srv.URL, "pk_test_1")
	require.NoError(t, err)

	pm, err := tok.CreatePaymentMethod(context.Background(), goodCard(), Billing{Email: "m@hostel.test"})
	require.NoError(t, err)
	assert.Equal(t, "pm_1", pm.ID)

	bad := goodCard()
	bad.CVC = "999"
	_, err = tok.CreatePaymentMethod(context.Background(), bad, Billing{Email: "m@hostel.test"})
	require.Error(t, err)

	_, err = NewProviderTokenizer(srv.URL, "")
	require.Error(t, err)
}
