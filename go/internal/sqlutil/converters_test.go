package sqlutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestamptzRoundTrip(t *testing.T) {
	assert.False(t, ToTimestamptz(time.Time{}).Valid)
	assert.True(t, FromTimestamptz(ToTimestamptz(time.Time{})).IsZero())

	now := time.Date(2024, 3, 9, 18, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	ts := ToTimestamptz(now)
	assert.True(t, ts.Valid)
	assert.True(t, now.Equal(FromTimestamptz(ts)))
}
