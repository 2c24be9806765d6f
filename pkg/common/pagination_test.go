package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "graphstore/pkg/errors"
)

func TestLenientPolicy(t *testing.T) {
	policy := NewLenientPolicy(20, 100)

	tests := []struct {
		name string
		raw  RawPage
		want Page
	}{
		{name: "absent", raw: RawPage{}, want: Page{Skip: 0, Take: 20}},
		{name: "valid", raw: RawPage{Skip: "5", Take: "10"}, want: Page{Skip: 5, Take: 10}},
		{name: "garbage", raw: RawPage{Skip: "x", Take: "y"}, want: Page{Skip: 0, Take: 20}},
		{name: "negative skip", raw: RawPage{Skip: "-7", Take: "3"}, want: Page{Skip: 0, Take: 3}},
		{name: "zero take", raw: RawPage{Take: "0"}, want: Page{Skip: 0, Take: 20}},
		{name: "negative take", raw: RawPage{Take: "-1"}, want: Page{Skip: 0, Take: 100}},
		{name: "take over max", raw: RawPage{Take: "1000"}, want: Page{Skip: 0, Take: 100}},
		{name: "whitespace", raw: RawPage{Skip: " 2 ", Take: " 4"}, want: Page{Skip: 2, Take: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Resolve(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrictPolicy(t *testing.T) {
	policy := NewStrictPolicy(20, 100)

	tests := []struct {
		name    string
		raw     RawPage
		want    Page
		wantErr bool
	}{
		{name: "absent", raw: RawPage{}, want: Page{Skip: 0, Take: 20}},
		{name: "zero skip", raw: RawPage{Skip: "0", Take: "5"}, want: Page{Skip: 0, Take: 5}},
		{name: "take over max clamps", raw: RawPage{Take: "101"}, want: Page{Skip: 0, Take: 100}},
		{name: "non numeric skip", raw: RawPage{Skip: "a"}, wantErr: true},
		{name: "negative skip", raw: RawPage{Skip: "-1"}, wantErr: true},
		{name: "zero take", raw: RawPage{Take: "0"}, wantErr: true},
		{name: "non numeric take", raw: RawPage{Take: "1.5"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Resolve(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, pkgerrors.ErrInvalidPagination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyBoundsNeverExceedCeiling(t *testing.T) {
	lenient := NewLenientPolicy(0, 10_000)
	assert.Equal(t, MaxTakeCeiling, lenient.MaxTake)
	assert.Equal(t, DefaultTake, lenient.DefaultTake)

	strict := NewStrictPolicy(800, 0)
	assert.Equal(t, MaxTakeCeiling, strict.MaxTake)
	assert.Equal(t, MaxTakeCeiling, strict.DefaultTake)

	assert.Equal(t, Page{Take: MaxTakeCeiling}, StrictPolicy{}.Normalize(Page{Take: 9999}))
	assert.Equal(t, "lenient", lenient.Name())
	assert.Equal(t, "strict", strict.Name())
}

func TestWindow(t *testing.T) {
	tests := []struct {
		page       Page
		total      int
		start, end int
	}{
		{page: Page{Skip: 0, Take: 2}, total: 5, start: 0, end: 2},
		{page: Page{Skip: 4, Take: 2}, total: 5, start: 4, end: 5},
		{page: Page{Skip: 9, Take: 2}, total: 5, start: 5, end: 5},
		{page: Page{Skip: 0, Take: 10}, total: 0, start: 0, end: 0},
	}
	for _, tt := range tests {
		start, end := Window(tt.page, tt.total)
		assert.Equal(t, tt.start, start, "%+v", tt.page)
		assert.Equal(t, tt.end, end, "%+v", tt.page)
	}
}
