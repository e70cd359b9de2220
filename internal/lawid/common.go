// Package lawid resolves law display names ("民法") to e-Gov law ids
// ("129AC0000000089").
package lawid

// DefaultCommonTable returns the curated table of frequently cited laws,
// including common aliases. It takes precedence over every other source
// because vector-search metadata occasionally carries corrupted law ids.
func DefaultCommonTable() map[string]string {
	return map[string]string{
		"日本国憲法":                   "321CONSTITUTION",
		"憲法":                      "321CONSTITUTION",
		"民法":                      "129AC0000000089",
		"商法":                      "132AC0000000048",
		"会社法":                     "417AC0000000086",
		"刑法":                      "140AC0000000045",
		"民事訴訟法":                   "408AC0000000109",
		"刑事訴訟法":                   "323AC0000000131",
		"民事執行法":                   "354AC0000000004",
		"民事保全法":                   "401AC0000000091",
		"破産法":                     "416AC0000000075",
		"不動産登記法":                  "416AC0000000123",
		"借地借家法":                   "403AC0000000090",
		"消費者契約法":                  "412AC0000000061",
		"労働基準法":                   "322AC0000000049",
		"労働契約法":                   "419AC0000000128",
		"労働組合法":                   "324AC0000000174",
		"著作権法":                    "345AC0000000048",
		"特許法":                     "334AC0000000121",
		"個人情報の保護に関する法律":           "415AC0000000057",
		"個人情報保護法":                 "415AC0000000057",
		"行政手続法":                   "405AC0000000088",
		"行政事件訴訟法":                 "337AC0000000139",
		"国家賠償法":                   "322AC0000000125",
		"地方自治法":                   "322AC0000000067",
		"所得税法":                    "340AC0000000033",
		"法人税法":                    "340AC0000000034",
		"消費税法":                    "363AC0000000108",
		"相続税法":                    "325AC0000000073",
		"租税特別措置法":                 "332AC0000000026",
		"金融商品取引法":                 "323AC0000000025",
		"道路交通法":                   "335AC0000000105",
		"私的独占の禁止及び公正取引の確保に関する法律":  "322AC0000000054",
		"独占禁止法":                   "322AC0000000054",
		"特定受託事業者に係る取引の適正化等に関する法律": "505AC0000000025",
		"フリーランス新法":                "505AC0000000025",
	}
}

// Table is an immutable law-name → law-id lookup.
type Table struct {
	ids map[string]string
}

// NewTable copies base and then overrides into a new Table.
func NewTable(base map[string]string, overrides map[string]string) *Table {
	ids := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		ids[k] = v
	}
	for k, v := range overrides {
		ids[k] = v
	}
	return &Table{ids: ids}
}

// Lookup returns the law id registered for name.
func (t *Table) Lookup(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	id, ok := t.ids[name]
	return id, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}
