// Package kanji converts between Japanese kanji numerals and integers and builds
// the canonical article titles and ids used as lookup keys across the statute corpus.
package kanji

import (
	"strconv"
	"strings"
)

var digitValues = map[rune]int{
	'〇': 0, '零': 0,
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

var unitValues = map[rune]int{
	'十': 10,
	'百': 100,
	'千': 1000,
}

var digitRunes = []string{"", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

var unitRunes = []string{"", "十", "百", "千"}

// ToInt converts a kanji numeral such as "千五十" or "二〇" to an integer.
// Digits accumulate by decimal shift; a unit multiplies the pending digits
// (1 when none are pending) and folds the product into the result.
// Characters that are neither digits nor units are ignored.
func ToInt(s string) int {
	result, temp := 0, 0
	for _, r := range s {
		if d, ok := digitValues[r]; ok {
			temp = temp*10 + d
			continue
		}
		if u, ok := unitValues[r]; ok {
			if temp == 0 {
				temp = 1
			}
			result += temp * u
			temp = 0
		}
	}
	return result + temp
}

// FromInt renders n as a kanji numeral. The coefficient 一 is omitted before
// every unit (10 → 十, 110 → 百十, 1050 → 千五十). Zero is "〇"; values outside
// 0..9999 fall back to decimal digits.
func FromInt(n int) string {
	if n == 0 {
		return "〇"
	}
	if n < 0 || n > 9999 {
		return strconv.Itoa(n)
	}
	var b strings.Builder
	for place := 3; place >= 0; place-- {
		pow := pow10(place)
		digit := (n / pow) % 10
		if digit == 0 {
			continue
		}
		if place == 0 || digit > 1 {
			b.WriteString(digitRunes[digit])
		}
		b.WriteString(unitRunes[place])
	}
	return b.String()
}

func pow10(p int) int {
	v := 1
	for i := 0; i < p; i++ {
		v *= 10
	}
	return v
}

// NormalizeDigits maps full-width digits (０-９) to ASCII digits. Other runes are unchanged.
func NormalizeDigits(s string) string {
	if !strings.ContainsFunc(s, isFullWidthDigit) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isFullWidthDigit(r) {
			return r - 0xFEE0
		}
		return r
	}, s)
}

func isFullWidthDigit(r rune) bool {
	return r >= '０' && r <= '９'
}

// IsNumeral reports whether r can appear in an article number: ASCII or
// full-width digits, or a kanji digit/unit.
func IsNumeral(r rune) bool {
	if r >= '0' && r <= '9' || isFullWidthDigit(r) {
		return true
	}
	_, isDigit := digitValues[r]
	_, isUnit := unitValues[r]
	return isDigit || isUnit
}

// ParseNumber parses an article number written in arabic digits (half or full
// width) or in kanji. It returns false for empty input or mixed scripts.
func ParseNumber(s string) (int, bool) {
	s = NormalizeDigits(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	for _, r := range s {
		_, isDigit := digitValues[r]
		_, isUnit := unitValues[r]
		if !isDigit && !isUnit {
			return 0, false
		}
	}
	return ToInt(s), true
}
