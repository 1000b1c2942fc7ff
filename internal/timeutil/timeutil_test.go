package timeutil

import (
	"testing"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrftime(t *testing.T) {
	ts := time.Date(2021, 3, 7, 15, 4, 5, 123456000, JST)

	tests := []struct {
		format string
		want   string
	}{
		{DefaultFormat, "2021-03-07T15:04:05.123456Z"},
		{"%Y/%m/%d %H:%M:%S", "2021/03/07 15:04:05"},
		{"%y%m%d", "210307"},
		{"%I:%M %p", "03:04 PM"},
		{"%a %A %b %B %j", "Sun Sunday Mar March 066"},
		{"%z %Z", "+0900 JST"},
		{"100%%", "100%"},
		{"%Q", "%Q"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, Strftime(ts, tt.format))
		})
	}
}

func TestStrptime(t *testing.T) {
	t.Run("fraction is right padded", func(t *testing.T) {
		got, hasOffset, err := Strptime("2021-01-02T03:04:05.5Z", DefaultFormat, time.UTC)
		require.NoError(t, err)
		assert.False(t, hasOffset)
		assert.Equal(t, 500000000, got.Nanosecond())
	})

	t.Run("offset is honoured", func(t *testing.T) {
		got, hasOffset, err := Strptime("2021-01-02 09:00:00+09:00", "%Y-%m-%d %H:%M:%S%z", time.UTC)
		require.NoError(t, err)
		assert.True(t, hasOffset)
		assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC).Unix(), got.Unix())
	})

	t.Run("naive input uses loc", func(t *testing.T) {
		got, _, err := Strptime("2021/01/02", "%Y/%m/%d", JST)
		require.NoError(t, err)
		assert.Equal(t, int64(1609513200), got.Unix())
	})

	t.Run("twelve hour clock", func(t *testing.T) {
		got, _, err := Strptime("12:30 AM", "%I:%M %p", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Hour())
		got, _, err = Strptime("01:30 PM", "%I:%M %p", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, 13, got.Hour())
	})

	t.Run("month names", func(t *testing.T) {
		got, _, err := Strptime("07 Mar 2021", "%d %b %Y", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, time.March, got.Month())
	})

	failures := map[string][2]string{
		"trailing data":  {"2021-01-02x", "%Y-%m-%d"},
		"invalid day":    {"2021-02-30", "%Y-%m-%d"},
		"invalid month":  {"2021-13-01", "%Y-%m-%d"},
		"literal":        {"2021/01/02", "%Y-%m-%d"},
		"bad directive":  {"2021", "%Q"},
		"short year":     {"21-01-01", "%Y-%m-%d"},
		"missing offset": {"2021-01-02 00:00:00", "%Y-%m-%d %H:%M:%S%z"},
	}
	for name, in := range failures {
		t.Run(name, func(t *testing.T) {
			_, _, err := Strptime(in[0], in[1], time.UTC)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrParse)
		})
	}
}

func TestParseFallbacks(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"202103", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-03", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2021/03", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"20210307", time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"2021-03-07", time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"2021/03/07", time.Date(2021, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"2021-03-07T01:02:03", time.Date(2021, 3, 7, 1, 2, 3, 0, time.UTC)},
		{"2021-03-07 01:02:03", time.Date(2021, 3, 7, 1, 2, 3, 0, time.UTC)},
		{"2021/03/07 01:02:03", time.Date(2021, 3, 7, 1, 2, 3, 0, time.UTC)},
		{"2021-03-07T01:02:03.250Z", time.Date(2021, 3, 7, 1, 2, 3, 250000000, time.UTC)},
		{"2021-03-07T10:02:03+0900", time.Date(2021, 3, 7, 1, 2, 3, 0, time.UTC)},
		{"2021-03-07T01:02:03.123456", time.Date(2021, 3, 7, 1, 2, 3, 123456000, time.UTC)},
		{"2021-03-07T10:02:03.123456+09:00", time.Date(2021, 3, 7, 1, 2, 3, 123456000, time.UTC)},
		{"2021-03-07T01:02:03.123456789Z", time.Date(2021, 3, 7, 1, 2, 3, 123000000, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v.Time()), "got %s", v.Time())
		})
	}

	_, err := Parse("not a date", time.UTC)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
}

func TestValueZoneDisplay(t *testing.T) {
	v := MustParse("2021-01-01 00:00:00", JST)
	assert.Equal(t, float64(1609426800), v.Unix())
	assert.Equal(t, "2021-01-01 00:00:00", v.Format("%Y-%m-%d %H:%M:%S"))

	utc := v.In(time.UTC)
	assert.True(t, v.Equal(utc))
	assert.Equal(t, "2020-12-31 15:00:00", utc.Format("%Y-%m-%d %H:%M:%S"))
	assert.Equal(t, 0, v.Hour())
	assert.Equal(t, 15, utc.Hour())
}

func TestChainedArithmeticMatchesDirect(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, JST, Offset(-3.5)} {
		base := FromUnix(1600000000, loc)
		chained := base.AddHours(8).AddMinutes(30)
		direct := base.AddSeconds(8.5 * 3600)
		require.NoError(t, chained.Err())
		assert.True(t, chained.Equal(direct))
		assert.Equal(t, base.Unix()+30600, chained.Unix())
	}
}

func TestValueIsImmutable(t *testing.T) {
	base := FromUnix(0, time.UTC)
	_ = base.AddDays(3)
	assert.Equal(t, float64(0), base.Unix())
}

func TestAddMonthsClamps(t *testing.T) {
	v := MustParse("2021-01-31", time.UTC).AddMonths(1)
	require.NoError(t, v.Err())
	assert.Equal(t, "2021-02-28", v.Format("%Y-%m-%d"))

	leap := MustParse("2020-02-29", time.UTC).AddYears(1)
	assert.Equal(t, "2021-02-28", leap.Format("%Y-%m-%d"))

	back := MustParse("2021-03-31", time.UTC).AddMonths(-13)
	assert.Equal(t, "2020-02-29", back.Format("%Y-%m-%d"))

	all := MustParse("2021-01-31 00:00:00", time.UTC).AddDate(1, 1, 1, 1, 1, 1, 1)
	assert.Equal(t, "2022-03-01 01:01:01.000001", all.Format("%Y-%m-%d %H:%M:%S.%f"))
}

func TestOutOfRangeIsSticky(t *testing.T) {
	v := MustParse("9999-12-01", time.UTC).AddMonths(1).AddDays(-40)
	require.Error(t, v.Err())
	assert.ErrorIs(t, v.Err(), apperrors.ErrOutOfRange)
}

func TestCalendarBoundaries(t *testing.T) {
	v := MustParse("2021-02-14 13:45:10", JST)
	assert.Equal(t, "2021-02-01 00:00:00", v.MonthFirstDay().Format("%Y-%m-%d %H:%M:%S"))
	assert.Equal(t, "2021-02-28 00:00:00", v.MonthLastDay().Format("%Y-%m-%d %H:%M:%S"))
	assert.Equal(t, "2021-01-01", v.YearFirstDay().Format("%Y-%m-%d"))
	assert.Equal(t, "2021-12-31", v.YearLastDay().Format("%Y-%m-%d"))

	y, m, d, h, mi, s, us := v.Date()
	assert.Equal(t, []int{2021, 2, 14, 13, 45, 10, 0}, []int{y, m, d, h, mi, s, us})
	assert.Equal(t, 6, v.Weekday())
	assert.Equal(t, "Sunday", v.WeekdayName())
}

func TestRounding(t *testing.T) {
	v := MustParse("2021-01-01 10:17:45", time.UTC)

	assert.Equal(t, "10:15:00", v.RoundMinutes(5, true).Format("%H:%M:%S"))
	assert.Equal(t, "10:20:00", v.RoundMinutes(5, false).Format("%H:%M:%S"))
	assert.Equal(t, "08:00:00", v.RoundHours(4, true).Format("%H:%M:%S"))
	assert.Equal(t, "10:17:50", v.RoundSeconds(10, false).Format("%H:%M:%S"))

	exact := MustParse("2021-01-01 10:15:00", time.UTC)
	assert.True(t, exact.RoundMinutes(5, false).Equal(exact))

	// days round at local midnight of the display zone
	jst := MustParse("2021-01-01 05:00:00", JST)
	assert.Equal(t, "2021-01-01 00:00:00", jst.RoundDays(1, true).Format("%Y-%m-%d %H:%M:%S"))
	assert.Equal(t, "2021-01-02 00:00:00", jst.RoundDays(1, false).Format("%Y-%m-%d %H:%M:%S"))

	bad := v.RoundSeconds(0, true)
	assert.ErrorIs(t, bad.Err(), apperrors.ErrInvalidBase)
}

func TestRounding_FarYears(t *testing.T) {
	layout := "%Y-%m-%d %H:%M:%S"

	v := MustParse("3000-01-01 10:30:00", time.UTC)
	got := v.RoundHours(1, true)
	require.NoError(t, got.Err())
	assert.Equal(t, "3000-01-01 10:00:00", got.Format(layout))
	assert.Equal(t, "3000-01-01 11:00:00", v.RoundHours(1, false).Format(layout))

	v = MustParse("1500-01-01 10:31:00", time.UTC)
	assert.Equal(t, "1500-01-01 10:45:00", v.RoundMinutes(15, false).Format(layout))
	assert.Equal(t, "1500-01-01 10:30:00", v.RoundMinutes(15, true).Format(layout))

	v = MustParse("0005-06-01 09:10:00", time.UTC)
	assert.Equal(t, "0005-06-01 12:00:00", v.RoundHours(4, false).Format(layout))

	v = MustParse("9999-12-31 05:00:00", JST)
	assert.Equal(t, "9999-12-31 00:00:00", v.RoundDays(1, true).Format(layout))

	for _, s := range []string{"0100-03-04 01:02:03", "2500-07-08 23:59:59", "9000-01-01 00:00:01"} {
		v := MustParse(s, time.UTC)
		down, up := v.RoundMinutes(7, true), v.RoundMinutes(7, false)
		require.NoError(t, down.Err())
		require.NoError(t, up.Err())
		assert.False(t, down.After(v), s)
		assert.False(t, up.Before(v), s)
		assert.LessOrEqual(t, up.Unix()-down.Unix(), 420.0, s)
	}
}

func TestComparisons(t *testing.T) {
	a := FromUnix(100, time.UTC)
	b := FromUnix(200, JST)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.False(t, a.Equal(b))
}

func TestParseZone(t *testing.T) {
	loc, err := ParseZone("jst")
	require.NoError(t, err)
	assert.Equal(t, JST, loc)

	loc, err = ParseZone("-3.5")
	require.NoError(t, err)
	_, off := time.Date(2021, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -12600, off)

	loc, err = ParseZone("0")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = ParseZone("+30")
	assert.ErrorIs(t, err, apperrors.ErrOutOfRange)
	_, err = ParseZone("Mars/Olympus")
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestRoundNumbers(t *testing.T) {
	for _, v := range []int64{0, 1, 59, 60, 61, 3599, 3600, -1, -61} {
		down, err := RoundDown(v, 60)
		require.NoError(t, err)
		up, err := RoundUp(v, 60)
		require.NoError(t, err)

		assert.LessOrEqual(t, down, v)
		assert.GreaterOrEqual(t, up, v)
		assert.Zero(t, down%60)
		assert.Zero(t, up%60)
		assert.Equal(t, v%60 == 0, down == up, "value %d", v)
	}

	f, err := RoundUp(60.5, 60)
	require.NoError(t, err)
	assert.Equal(t, 120.0, f)

	i, err := RoundDown(125, 60)
	require.NoError(t, err)
	assert.Equal(t, 120, i)

	_, err = RoundDown(10.0, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidBase)

	all, err := RoundDownAll([]int64{61, 119, 120}, 60)
	require.NoError(t, err)
	assert.Equal(t, []int64{60, 60, 120}, all)

	ups, err := RoundUpAll([]float64{0.5, 60}, 60)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 60}, ups)

	rt, err := RoundTime(time.Unix(125, 5), 60, false)
	require.NoError(t, err)
	assert.Equal(t, int64(180), rt.Unix())
}

func TestConversionsUseResults(t *testing.T) {
	epoch := ToUnix("1970-01-01T00:00:00.000000Z")
	require.True(t, epoch.OK())
	assert.Equal(t, 0.0, epoch.Value())

	bad := ToUnix("garbage")
	assert.False(t, bad.OK())
	assert.Equal(t, -1.0, bad.Or(-1))

	r := StrToTime("2021/03/07 01:02:03", DefaultFormat)
	require.True(t, r.OK())
	assert.Equal(t, 7, r.Value().Day())

	short := StrToTime("2021", "%Y")
	assert.ErrorIs(t, short.Err(), apperrors.ErrInvalidArgument)

	list := StrToTimes([]string{"2021-03-07T01:02:03", "2021-03-08T01:02:03"}, "")
	require.True(t, list.OK())
	assert.Len(t, list.Value(), 2)

	failed := StrToTimes([]string{"2021-03-07T01:02:03", "oops"}, "")
	assert.False(t, failed.OK())

	secs := ToUnixSlice([]time.Time{time.Unix(10, 0), time.Unix(20, 500000000)})
	require.True(t, secs.OK())
	assert.Equal(t, []float64{10, 20.5}, secs.Value())

	vals := ToUnixSlice([]Value{FromUnix(5, JST)})
	assert.Equal(t, []float64{5}, vals.Value())

	unsupported := ToUnix(42)
	assert.ErrorIs(t, unsupported.Err(), apperrors.ErrInvalidArgument)
}

func TestParseYMD(t *testing.T) {
	day, err := ParseYMD("2021/02/03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseYMD("2021-02-03")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
}
