package finance

import "sort"

// CurrencySummary nets one currency's inflows against its outflows.
type CurrencySummary struct {
	Currency     string `json:"currency"`
	IncomeCents  int64  `json:"income_cents"`
	OutflowCents int64  `json:"outflow_cents"`
	NetCents     int64  `json:"net_cents"`
}

// Statement is the financial statement of a church over a period.
type Statement struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Categories []Total           `json:"categories"`
	Summary    []CurrencySummary `json:"summary"`
}

// BuildStatement folds per-category totals into per-currency income, outflow and net. Unknown
// categories count as income.
func BuildStatement(totals []Total) Statement {
	byCurrency := map[string]*CurrencySummary{}
	for _, t := range totals {
		s, ok := byCurrency[t.Currency]
		if !ok {
			s = &CurrencySummary{Currency: t.Currency}
			byCurrency[t.Currency] = s
		}
		if cat, ok := categoryByName(t.Category); ok && cat.Outflow {
			s.OutflowCents += t.AmountCents
		} else {
			s.IncomeCents += t.AmountCents
		}
	}
	st := Statement{Categories: totals, Summary: make([]CurrencySummary, 0, len(byCurrency))}
	if st.Categories == nil {
		st.Categories = []Total{}
	}
	for _, s := range byCurrency {
		s.NetCents = s.IncomeCents - s.OutflowCents
		st.Summary = append(st.Summary, *s)
	}
	sort.Slice(st.Summary, func(i, j int) bool { return st.Summary[i].Currency < st.Summary[j].Currency })
	return st
}
