package citation

import "strings"

// Parent describes the laws an abbreviated reference points to from inside a
// subordinate regulation: 法 means Law and, for a 施行規則, 令 means Order.
type Parent struct {
	Law   string
	Order string
}

// ParentMap derives parent-law information for subordinate regulations.
// Irregular regulation names come from an exception table; regular ones follow
// the "<X>法施行令" / "<X>法施行規則" naming convention.
type ParentMap struct {
	exceptions map[string]Parent
}

// DefaultParentExceptions lists regulations whose names do not follow the
// 施行令/施行規則 convention.
func DefaultParentExceptions() map[string]string {
	return map[string]string{
		"会社計算規則":   "会社法",
		"電子公告規則":   "会社法",
		"商業登記規則":   "商業登記法",
		"不動産登記規則":  "不動産登記法",
		"民事訴訟規則":   "民事訴訟法",
		"刑事訴訟規則":   "刑事訴訟法",
		"民事執行規則":   "民事執行法",
		"破産規則":     "破産法",
		"家事事件手続規則": "家事事件手続法",
	}
}

// NewParentMap builds a ParentMap from a regulation-name → parent-law table.
func NewParentMap(exceptions map[string]string) *ParentMap {
	m := &ParentMap{exceptions: make(map[string]Parent, len(exceptions))}
	for reg, law := range exceptions {
		m.exceptions[reg] = Parent{Law: law}
	}
	return m
}

// Lookup returns the parent-law information for regulation, or false when
// regulation is not a recognized subordinate regulation.
func (m *ParentMap) Lookup(regulation string) (Parent, bool) {
	if p, ok := m.exceptions[regulation]; ok {
		return p, true
	}
	if base, ok := strings.CutSuffix(regulation, "施行令"); ok && strings.HasSuffix(base, "法") {
		return Parent{Law: base}, true
	}
	if base, ok := strings.CutSuffix(regulation, "施行規則"); ok && strings.HasSuffix(base, "法") {
		return Parent{Law: base, Order: base + "施行令"}, true
	}
	return Parent{}, false
}
