package portfolio

import (
	"math"
	"testing"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"na", " N/A ", nil},
		{"excel na", "#N/A N.A.", nil},
		{"dash", "—", nil},
		{"hyphen", "-", nil},
		{"empty", "   ", nil},
		{"nan string", "NaN", nil},
		{"infinity string", "Inf", nil},
		{"thousands", "1,234.5", 1234.5},
		{"negative", "-12", -12.0},
		{"text", " Reliance ", "Reliance"},
		{"float", 2.5, 2.5},
		{"int", 3, 3.0},
		{"infinite float", math.Inf(1), nil},
		{"bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.in); got != tt.want {
				t.Errorf("CleanCell(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanRow(t *testing.T) {
	got := CleanRow(Row{"Qty": "10", "Name": " X ", "CMP": "#N/A"})

	if got["Qty"] != 10.0 || got["Name"] != "X" || got["CMP"] != nil {
		t.Errorf("CleanRow() = %#v", got)
	}
}
