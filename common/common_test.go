package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartEndTimeCheck(t *testing.T) {
	t.Parallel()
	tt := time.Now()
	err := StartEndTimeCheck(time.Time{}, tt)
	assert.ErrorIs(t, err, ErrDateUnset)

	err = StartEndTimeCheck(tt, time.Time{})
	assert.ErrorIs(t, err, ErrDateUnset)

	err = StartEndTimeCheck(tt, tt.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrStartAfterEnd)

	err = StartEndTimeCheck(tt, tt)
	assert.ErrorIs(t, err, ErrStartEqualsEnd)

	err = StartEndTimeCheck(tt, tt.Add(time.Hour))
	assert.NoError(t, err)
}
