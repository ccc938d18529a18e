package util

import (
	"reflect"
	"testing"
)

func TestExpandRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{
			name: "single value",
			spec: "5",
			want: []int{5},
		},
		{
			name: "simple range",
			spec: "1-5",
			want: []int{1, 2, 3, 4, 5},
		},
		{
			name: "comma separated",
			spec: "1,3,5",
			want: []int{1, 3, 5},
		},
		{
			name: "mixed",
			spec: "1-3,5,7-9",
			want: []int{1, 2, 3, 5, 7, 8, 9},
		},
		{
			name: "with spaces",
			spec: "1 - 3, 5",
			want: []int{1, 2, 3, 5},
		},
		{
			name: "duplicates removed",
			spec: "1-3,2-4",
			want: []int{1, 2, 3, 4},
		},
		{
			name: "empty string",
			spec: "",
			want: nil,
		},
		{
			name:    "invalid - start > end",
			spec:    "5-1",
			wantErr: true,
		},
		{
			name:    "invalid - not a number",
			spec:    "abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandRange(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExpandRange(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
				return
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandRange(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestExpandVLANRange(t *testing.T) {
	got, err := ExpandVLANRange("251-253,300")
	if err != nil {
		t.Fatalf("ExpandVLANRange: %v", err)
	}
	want := []int{251, 252, 253, 300}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := ExpandVLANRange("4000-5000"); err == nil {
		t.Error("expected error for VLAN id above 4094")
	}
}

func TestRangeContains(t *testing.T) {
	tests := []struct {
		spec  string
		value int
		want  bool
	}{
		{"100-999", 253, true},
		{"100-999", 1000, false},
		{"100-199,251", 251, true},
		{"", 251, false},
	}

	for _, tt := range tests {
		got, err := RangeContains(tt.spec, tt.value)
		if err != nil {
			t.Fatalf("RangeContains(%q, %d): %v", tt.spec, tt.value, err)
		}
		if got != tt.want {
			t.Errorf("RangeContains(%q, %d) = %v, want %v", tt.spec, tt.value, got, tt.want)
		}
	}
}

func TestCompactRange(t *testing.T) {
	tests := []struct {
		values []int
		want   string
	}{
		{[]int{1, 2, 3, 5, 7, 8, 9}, "1-3,5,7-9"},
		{[]int{5}, "5"},
		{nil, ""},
		{[]int{3, 1, 2, 2}, "1-3"},
	}

	for _, tt := range tests {
		if got := CompactRange(tt.values); got != tt.want {
			t.Errorf("CompactRange(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}
