package schema

import (
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
)

// priceExpression renders the sort value of a product: the gross amount of
// the best matching price rule in the context currency, or the product price
// when no rule matches. Rules of the context are ranked in list order, rules
// without a rule id come after them. A variant without own rules uses the
// rules of its parent.
func priceExpression(scope *dal.ExpressionScope) (string, []any) {
	self := scope.Column("id")
	owner := fmt.Sprintf(
		"CASE WHEN EXISTS (SELECT 1 FROM product_price_rule own_rule WHERE own_rule.product_id = %s) THEN %s ELSE %s END",
		self, self, scope.Column("parentId"),
	)

	rules := make([]any, 0, len(scope.Context.RuleIDs))
	for _, id := range scope.Context.RuleIDs {
		if canonical, ok := dal.NormalizeID(id); ok {
			rules = append(rules, canonical)
		}
	}

	args := []any{scope.Context.CurrencyID}
	var sub strings.Builder
	sub.WriteString("SELECT price_rule.gross FROM product_price_rule price_rule WHERE price_rule.product_id = ")
	sub.WriteString(owner)
	sub.WriteString(" AND price_rule.currency_id = ?")

	if len(rules) == 0 {
		sub.WriteString(" AND price_rule.rule_id IS NULL ORDER BY ")
	} else {
		in := strings.TrimSuffix(strings.Repeat("?, ", len(rules)), ", ")
		sub.WriteString(" AND (price_rule.rule_id IS NULL OR price_rule.rule_id IN (" + in + "))")
		args = append(args, rules...)

		sub.WriteString(" ORDER BY CASE price_rule.rule_id")
		for i, rule := range rules {
			sub.WriteString(fmt.Sprintf(" WHEN ? THEN %d", i))
			args = append(args, rule)
		}
		sub.WriteString(fmt.Sprintf(" ELSE %d END, ", len(rules)))
	}
	sub.WriteString("price_rule.quantity_start, price_rule.position LIMIT 1")

	fallback, fallbackArgs := scope.Effective("price")
	args = append(args, fallbackArgs...)
	return "COALESCE((" + sub.String() + "), " + fallback + ")", args
}
