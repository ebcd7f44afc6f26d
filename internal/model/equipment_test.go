package model

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"checked", StatusChecked},
		{" Checked ", StatusChecked},
		{"已盤點", StatusChecked},
		{"unchecked", StatusUnchecked},
		{"", StatusUnchecked},
		{"garbage", StatusUnchecked},
	}

	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
