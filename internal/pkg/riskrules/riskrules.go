// Package riskrules flags common contract risks by keyword, independent of
// the language model. Flags are appended to the model's risk list so a
// weak model answer still surfaces the obvious ones.
package riskrules

import "regexp"

// Rule pairs a trigger pattern with the risk text it raises.
type Rule struct {
	Name string
	Expr *regexp.Regexp
	Flag string
}

// DefaultRules is the rule table; extend it here, the matching loop does
// not change.
var DefaultRules = []Rule{
	{
		Name: "penalty",
		Expr: regexp.MustCompile(`(?i)(неустойк|штраф|пен[яи])`),
		Flag: "Проверьте размер неустойки/штрафа и порядок начисления.",
	},
	{
		Name: "unilateral-termination",
		Expr: regexp.MustCompile(`(?i)односторонн[а-яё]*\s+(отказ|расторжени)`),
		Flag: "Условие об одностороннем расторжении: уточните сроки уведомления и компенсации.",
	},
	{
		Name: "prepayment",
		Expr: regexp.MustCompile(`(?i)(предоплат|аванс)`),
		Flag: "Предоплата/аванс: зафиксируйте условия возврата при неисполнении.",
	},
	{
		Name: "liability-cap",
		Expr: regexp.MustCompile(`(?i)ограничени[а-яё]*\s+ответственност`),
		Flag: "Ограничение ответственности: проверьте, не лишает ли оно вас возмещения убытков.",
	},
	{
		Name: "auto-renewal",
		Expr: regexp.MustCompile(`(?i)(автоматическ[а-яё]*\s+продлени|пролонгаци)`),
		Flag: "Автопролонгация: отметьте срок для отказа от продления.",
	},
}

// Flags returns the risk strings whose rules match text, in table order,
// one per rule.
func Flags(text string) []string {
	var out []string
	for _, r := range DefaultRules {
		if r.Expr.MatchString(text) {
			out = append(out, r.Flag)
		}
	}
	return out
}
