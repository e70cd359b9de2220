package kanji

import "testing"

func TestFromInt(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "〇"},
		{1, "一"},
		{10, "十"},
		{11, "十一"},
		{20, "二十"},
		{100, "百"},
		{110, "百十"},
		{141, "百四十一"},
		{557, "五百五十七"},
		{1000, "千"},
		{1050, "千五十"},
		{1111, "千百十一"},
		{9999, "九千九百九十九"},
	}
	for _, tt := range tests {
		if got := FromInt(tt.n); got != tt.want {
			t.Errorf("FromInt(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"〇", 0},
		{"十", 10},
		{"十一", 11},
		{"二十", 20},
		{"百四十一", 141},
		{"千五十", 1050},
		{"一千五十", 1050},
		{"二〇", 20},
		{"三〇五", 305},
	}
	for _, tt := range tests {
		if got := ToInt(tt.s); got != tt.want {
			t.Errorf("ToInt(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for n := 0; n <= 9999; n++ {
		if got := ToInt(FromInt(n)); got != n {
			t.Fatalf("ToInt(FromInt(%d)) = %d (kanji %q)", n, got, FromInt(n))
		}
	}
}

func TestFromInt_OutOfRange(t *testing.T) {
	if got := FromInt(10000); got != "10000" {
		t.Errorf("FromInt(10000) = %q", got)
	}
	if got := FromInt(-3); got != "-3" {
		t.Errorf("FromInt(-3) = %q", got)
	}
}

func TestNormalizeDigits(t *testing.T) {
	if got := NormalizeDigits("４２条"); got != "42条" {
		t.Errorf("NormalizeDigits = %q, want 42条", got)
	}
	inputs := []string{"４２条", "民法第１０５０条の２", "abc", "", "第百条"}
	for _, in := range inputs {
		once := NormalizeDigits(in)
		if twice := NormalizeDigits(once); twice != once {
			t.Errorf("NormalizeDigits not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		s      string
		want   int
		wantOK bool
	}{
		{"42", 42, true},
		{"４２", 42, true},
		{"四十二", 42, true},
		{"", 0, false},
		{"4二", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.s)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseNumber(%q) = %d, %v; want %d, %v", tt.s, got, ok, tt.want, tt.wantOK)
		}
	}
}
