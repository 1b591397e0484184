package cron_test

import (
	"testing"
	"time"

	"github.com/absmach/sampler/pkg/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 1, 10, 7, 30, 0, time.UTC)

	cases := []struct {
		desc string
		expr string
		tz   string
		want time.Time
		err  bool
	}{
		{desc: "every quarter hour", expr: "*/15 * * * *", want: time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)},
		{desc: "hourly descriptor", expr: "@hourly", want: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)},
		{desc: "interval descriptor", expr: "@every 10m", want: from.Add(10 * time.Minute)},
		{desc: "unknown timezone falls back to UTC", expr: "0 12 * * *", tz: "Mars/Olympus", want: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		{desc: "empty", expr: "", err: true},
		{desc: "six fields", expr: "0 */5 * * * *", err: true},
		{desc: "garbage", expr: "sometimes", err: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			s, err := cron.Parse(tc.expr, tc.tz)
			if tc.err {
				assert.ErrorIs(t, err, cron.ErrInvalidCronExpression)
				assert.Error(t, cron.Validate(tc.expr))

				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(s.Next(from)), "got %s", s.Next(from))
			assert.Equal(t, tc.expr, s.String())
		})
	}
}

func TestNilScheduleNeverFires(t *testing.T) {
	t.Parallel()

	var s *cron.Schedule
	assert.True(t, s.Next(time.Now()).IsZero())
}
