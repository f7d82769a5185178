package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaidashi/delivery-orders/internal/models"
	apperrors "github.com/vaidashi/delivery-orders/pkg/errors"
)

func TestItemInputValidate(t *testing.T) {
	ok := ItemInput{ProductID: 1, UnitType: models.UnitKG, QtyUnits: decimal.RequireFromString("0.5")}
	assert.NoError(t, ok.validate())

	bad := ok
	bad.UnitType = "LT"
	assert.Error(t, bad.validate())

	bad = ok
	bad.QtyUnits = decimal.Zero
	assert.Error(t, bad.validate())

	bad.QtyUnits = decimal.NewFromInt(-1)
	assert.Error(t, bad.validate())
}

func TestCleanupScopeRange(t *testing.T) {
	rng, err := CleanupScope{Mode: CleanupAll}.rangeOf()
	require.NoError(t, err)
	assert.Nil(t, rng)

	rng, err = CleanupScope{Mode: CleanupRange, From: "2024-01-01", To: "2024-01-31"}.rangeOf()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rng.From.String())
	assert.Equal(t, "2024-01-31", rng.To.String())

	for _, scope := range []CleanupScope{
		{Mode: CleanupRange, From: "2024-01-01"},
		{Mode: CleanupRange, From: "01/01/2024", To: "2024-01-31"},
		{Mode: CleanupRange, From: "2024-02-30", To: "2024-03-01"},
		{Mode: CleanupRange, From: "2024-02-01", To: "2024-01-01"},
	} {
		_, err := scope.rangeOf()
		appErr, ok := apperrors.As(err)
		require.True(t, ok, "%+v", scope)
		assert.Equal(t, MsgInvalidDates, appErr.Message)
	}

	_, err = CleanupScope{Mode: "everything"}.rangeOf()
	assert.Equal(t, 400, apperrors.StatusCode(err))
}

func TestIsCodeLike(t *testing.T) {
	assert.True(t, isCodeLike("MOZ01"))
	assert.True(t, isCodeLike("abcdef"))
	assert.False(t, isCodeLike("abcdefg"))
	assert.False(t, isCodeLike("fior di"))
}
