package concept

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		sql  string
		want Concept
	}{
		{"SELECT name FROM customers", BasicSelect},
		{"SELECT name FROM customers WHERE id = 4", BasicSelect},
		{"SELECT COUNT(*) FROM orders", Aggregation},
		{"SELECT city FROM customers ORDER BY city", Aggregation},
		{"SELECT min_total FROM order_stats", BasicSelect},
		{"SELECT c.name FROM customers c LEFT JOIN orders o ON o.customer_id = c.id", Joins},
		{"SELECT c.name, COUNT(o.id) FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name", Joins},
		{"SELECT name FROM customers WHERE EXISTS (SELECT 1 FROM orders)", AdvancedLogic},
		{"SELECT CASE WHEN total > 10 THEN 1 END FROM orders", AdvancedLogic},
		{"SELECT a FROM t UNION SELECT a FROM u", AdvancedLogic},
		{"SELECT name, ROW_NUMBER() OVER (PARTITION BY city ORDER BY name) FROM customers", WindowFunctions},
		{"SELECT name, DENSE_RANK() OVER w FROM customers WINDOW w AS (ORDER BY name)", WindowFunctions},
		{"WITH recent AS (SELECT * FROM orders) SELECT COUNT(*) FROM recent", AdvancedAnalytics},
		{"WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i+1 FROM n WHERE i < 5) SELECT i FROM n", AdvancedAnalytics},
		{"", BasicSelect},
	}
	for _, tt := range tests {
		if got := Classify(tt.sql); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.sql, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, c := range All() {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Error.Valid() {
		t.Error("error sentinel must not be a skill concept")
	}
	if _, ok := Parse("joins"); !ok {
		t.Error("Parse(joins) should succeed")
	}
	if _, ok := Parse("cooking"); ok {
		t.Error("Parse(cooking) should fail")
	}
}
