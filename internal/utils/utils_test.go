package utils

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("secret", id, "pharmacy_owner", time.Hour)
	require.NoError(t, err)

	gotID, role, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "pharmacy_owner", role)

	_, _, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestParseToken_RejectsExpiredAndForeignAlgorithms(t *testing.T) {
	expired, err := GenerateToken("secret", uuid.New(), "customer", -time.Minute)
	require.NoError(t, err)
	_, _, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &TokenClaims{UserID: uuid.NewString()})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = ParseToken("secret", raw)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	assert.Equal(t, "cora@example.com", NormalizeEmail("  Cora@Example.COM "))
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		p := ParsePagination(c)
		SetTotalCount(c, 42)
		return c.JSON(p)
	})

	tests := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"?page=3&limit=10", Pagination{Page: 3, Limit: 10, Offset: 20}},
		{"?page=-1&limit=0", Pagination{Page: 1, Limit: 20, Offset: 0}},
		{"?page=2&limit=1000", Pagination{Page: 2, Limit: 100, Offset: 100}},
		{"?page=abc", Pagination{Page: 1, Limit: 20, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, "42", resp.Header.Get("X-Total-Count"))

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, toJSON(t, tt.want), string(body))
		})
	}
}

func toJSON(t *testing.T, p Pagination) string {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return string(b)
}
