package citation

import "testing"

func BenchmarkParse(b *testing.B) {
	p := NewParser(NewParentMap(nil))
	text := "民法第五百五十七条第一項及び会社法第三百五十五条の規定により、同法第三百五十六条の二を準用する場合"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Parse(text, Options{})
	}
}
