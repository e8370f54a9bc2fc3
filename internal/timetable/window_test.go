package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(loc *time.Location, hour, minute int) time.Time {
	return time.Date(2025, 1, 6, hour, minute, 0, 0, loc)
}

func TestSessionWindow(t *testing.T) {
	loc := sydney(t)
	date := time.Date(2025, 1, 6, 16, 0, 0, 0, loc)

	w, err := SessionWindow(date, "18:00", "19:30", loc)
	require.NoError(t, err)
	assert.Equal(t, at(loc, 18, 0), w.Start)
	assert.Equal(t, at(loc, 19, 30), w.End)

	w, err = SessionWindow(date, "23:00", "01:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 7, 1, 0, 0, 0, loc), w.End)

	w, err = SessionWindow(date, "", "", loc)
	require.NoError(t, err)
	assert.Equal(t, date, w.Start)
	assert.Equal(t, date.Add(time.Hour), w.End)

	_, err = SessionWindow(date, "18:00", "late", loc)
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestEnvelopeKeepsGaps(t *testing.T) {
	loc := sydney(t)
	env, ok := Envelope([]Window{
		{Start: at(loc, 18, 0), End: at(loc, 19, 0)},
		{Start: at(loc, 9, 0), End: at(loc, 10, 0)},
		{Start: at(loc, 12, 0), End: at(loc, 20, 0)},
	})
	require.True(t, ok)
	assert.Equal(t, at(loc, 9, 0), env.Start)
	assert.Equal(t, at(loc, 20, 0), env.End)

	_, ok = Envelope(nil)
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	loc := sydney(t)
	tests := []struct {
		name string
		in   []Window
		want []Window
	}{
		{
			name: "touching windows merge",
			in: []Window{
				{Start: at(loc, 19, 0), End: at(loc, 20, 0)},
				{Start: at(loc, 18, 0), End: at(loc, 19, 0)},
			},
			want: []Window{{Start: at(loc, 18, 0), End: at(loc, 20, 0)}},
		},
		{
			name: "contained window keeps the larger end",
			in: []Window{
				{Start: at(loc, 16, 0), End: at(loc, 19, 0)},
				{Start: at(loc, 17, 0), End: at(loc, 18, 0)},
			},
			want: []Window{{Start: at(loc, 16, 0), End: at(loc, 19, 0)}},
		},
		{
			name: "gap keeps windows apart",
			in: []Window{
				{Start: at(loc, 16, 0), End: at(loc, 17, 0)},
				{Start: at(loc, 17, 30), End: at(loc, 18, 30)},
			},
			want: []Window{
				{Start: at(loc, 16, 0), End: at(loc, 17, 0)},
				{Start: at(loc, 17, 30), End: at(loc, 18, 30)},
			},
		},
		{name: "empty", in: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.in))
		})
	}
}

func TestMergeByLabel(t *testing.T) {
	loc := sydney(t)

	spans := MergeByLabel(map[string][]Window{
		"Bea": {{Start: at(loc, 18, 0), End: at(loc, 19, 0)}},
		"Al":  {{Start: at(loc, 18, 0), End: at(loc, 19, 0)}},
	})
	require.Len(t, spans, 1)
	assert.Equal(t, "Al and Bea", spans[0].Label())

	spans = MergeByLabel(map[string][]Window{
		"Cy": {
			{Start: at(loc, 19, 0), End: at(loc, 20, 0)},
			{Start: at(loc, 18, 0), End: at(loc, 19, 0)},
		},
		"Al": {{Start: at(loc, 16, 0), End: at(loc, 17, 0)}},
		"Bo": {{Start: at(loc, 18, 0), End: at(loc, 19, 0)}},
	})
	require.Len(t, spans, 3)
	assert.Equal(t, []string{"Al"}, spans[0].Labels)
	assert.Equal(t, []string{"Bo"}, spans[1].Labels)
	assert.Equal(t, []string{"Cy"}, spans[2].Labels)
	assert.Equal(t, at(loc, 20, 0), spans[2].End)
}
