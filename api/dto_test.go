package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taixiu/models"
	"taixiu/service"
)

func TestPlaceBetRequest_Parse(t *testing.T) {
	side, amount, err := PlaceBetRequest{RoundID: 1, Side: "tài", Amount: "12.50"}.parse()
	require.NoError(t, err)
	assert.Equal(t, models.SideHigh, side)
	assert.Equal(t, int64(1250), amount)

	_, _, err = PlaceBetRequest{RoundID: 1, Side: "even", Amount: "10"}.parse()
	assert.ErrorIs(t, err, service.ErrInvalidSide)

	_, _, err = PlaceBetRequest{RoundID: 1, Side: "low", Amount: "1.005"}.parse()
	assert.ErrorIs(t, err, service.ErrInvalidAmount)
}

func TestManualResultRequest_Side(t *testing.T) {
	side, err := ManualResultRequest{}.side()
	require.NoError(t, err)
	assert.Nil(t, side, "a null side clears the override")

	xiu := "xiu"
	side, err = ManualResultRequest{Side: &xiu}.side()
	require.NoError(t, err)
	require.NotNil(t, side)
	assert.Equal(t, models.SideLow, *side)

	bogus := "seven"
	_, err = ManualResultRequest{Side: &bogus}.side()
	assert.ErrorIs(t, err, service.ErrInvalidSide)
}

func TestCreateGiftcodeRequest_Amount(t *testing.T) {
	amount, err := CreateGiftcodeRequest{Code: "TET", Amount: "50"}.amount()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), amount)

	_, err = CreateGiftcodeRequest{Code: "TET", Amount: "lots"}.amount()
	assert.ErrorIs(t, err, service.ErrInvalidAmount)
}

func TestRequestParseErrors_AreBadRequests(t *testing.T) {
	bogus := "seven"
	_, sideErr := ManualResultRequest{Side: &bogus}.side()
	_, amountErr := CreateGiftcodeRequest{Amount: "lots"}.amount()

	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "side", err: sideErr, code: "invalid_side"},
		{name: "amount", err: amountErr, code: "invalid_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}
