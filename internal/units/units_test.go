package units

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   string
		want    string
		wantErr bool
	}{
		{name: "megabytes fractional", limit: "2.5M", want: "2560K"},
		{name: "kilobytes", limit: "100K", want: "100K"},
		{name: "unlimited", limit: "0", want: "0"},
		{name: "zero kilobytes", limit: "0K", want: "0K"},
		{name: "kilobytes rounded up", limit: "10.5K", want: "11K"},
		{name: "kilobytes rounded down", limit: "10.4K", want: "10K"},
		{name: "whole megabytes", limit: "1M", want: "1024K"},
		{name: "lowercase unit", limit: "3m", want: "3072K"},
		{name: "normalizing twice is stable", limit: "2560K", want: "2560K"},
		{name: "empty", limit: "", wantErr: true},
		{name: "unknown unit", limit: "5G", wantErr: true},
		{name: "not a number", limit: "fastK", wantErr: true},
		{name: "negative", limit: "-1K", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLimit(tt.limit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSizeAndRate(t *testing.T) {
	require.Equal(t, "1000 B", Size(1000))
	require.Equal(t, "1.0 KiB", Size(1024))
	require.Equal(t, "1.5 MiB", Size(1536*1024))
	require.Equal(t, "0 B", Size(-5))

	require.Equal(t, "0", Rate(0))
	require.Equal(t, "2.0 KiB/s", Rate(2048))
}

func TestPercent(t *testing.T) {
	require.Equal(t, "25%", Percent(250, 1000))
	require.Equal(t, "33%", Percent(1, 3))
	require.Equal(t, "100%", Percent(1000, 1000))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{59, "59s"},
		{60, "1m0s"},
		{125, "2m5s"},
		{3600, "1h0m0s"},
		{3725, "1h2m5s"},
		{-3, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, Duration(tt.seconds))
		})
	}
}
