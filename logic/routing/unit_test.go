package routing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Division ")
	require.NoError(t, err)
	assert.Equal(t, KindDivision, k)

	_, err = ParseKind("office")
	assert.True(t, IsInvalidArgument(err))
}

func TestUnit_ColumnsRoundTrip(t *testing.T) {
	for _, u := range []Unit{Department(3), Division(4), Deputy(5)} {
		dep, div, dpt := u.Columns()
		got, err := UnitFromColumns(dep, div, dpt)
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}
}

func TestUnitFromColumns_RequiresExactlyOne(t *testing.T) {
	one, two := int64(1), int64(2)

	_, err := UnitFromColumns(nil, nil, nil)
	assert.Error(t, err)

	_, err = UnitFromColumns(&one, &two, nil)
	assert.Error(t, err)
}

func TestError_CodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("sign: %w", PreconditionFailed("row is %s", SignatureSigned))
	assert.Equal(t, CodePreconditionFailed, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("disk full")))

	cause := errors.New("deadline")
	rc := RetryableConflict(cause, "letter busy")
	assert.True(t, IsConflict(rc))
	assert.True(t, IsRetryable(rc))
	assert.ErrorIs(t, rc, cause)
	assert.False(t, IsRetryable(Conflict("duplicate")))
}
