package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseYear(t *testing.T) {
	testCases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "2019", want: 2019},
		{in: " 2021 ", want: 2021},
		{in: "19", wantErr: true},
		{in: "20x9", wantErr: true},
		{in: "20190", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := ParseYear(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
}

func TestIsNullValue(t *testing.T) {
	nulls := []string{"", "NA"}
	require.True(t, IsNullValue("", nulls))
	require.True(t, IsNullValue("NA", nulls))
	require.False(t, IsNullValue("na", nulls))
	require.False(t, IsNullValue("Yes", nulls))
	require.False(t, IsNullValue("", nil))
}
