package arbitrage

import "sort"

// fallbackTriangles is the hard-coded common-market list used when
// generation over the available symbol set yields nothing (spec §4.4).
var fallbackTriangles = []Triangle{
	{P1: "EURUSD", P2: "USDJPY", P3: "EURJPY"},
	{P1: "GBPUSD", P2: "USDJPY", P3: "GBPJPY"},
	{P1: "EURGBP", P2: "GBPUSD", P3: "EURUSD"},
	{P1: "AUDUSD", P2: "USDJPY", P3: "AUDJPY"},
	{P1: "EURUSD", P2: "USDCHF", P3: "EURCHF"},
}

// currencies splits a canonical 6-letter pair into base/quote.
func currencies(pair string) (string, string) {
	return pair[0:3], pair[3:6]
}

// validatesClosure reports whether three pairs close a currency loop
// (spec §3): either quote(P1)=base(P2) and the remaining two currencies
// form P3, or base(P1)=quote(P2) analogously.
func validatesClosure(p1, p2, p3 string) bool {
	b1, q1 := currencies(p1)
	b2, q2 := currencies(p2)
	b3, q3 := currencies(p3)

	if q1 == b2 {
		// remaining currencies of P1 (base1) and P2 (quote2) should form P3
		return (b3 == b1 && q3 == q2) || (b3 == q2 && q3 == b1)
	}
	if b1 == q2 {
		return (b3 == q1 && q3 == b2) || (b3 == b2 && q3 == q1)
	}
	return false
}

// triangleSignature returns a canonical, order-independent key for
// deduplicating triangles built from the same three pairs.
func triangleSignature(t Triangle) string {
	pairs := []string{t.P1, t.P2, t.P3}
	sort.Strings(pairs)
	return pairs[0] + "|" + pairs[1] + "|" + pairs[2]
}

// GenerateTriangles enumerates valid, deduplicated triangles over the
// available canonical symbols (filtered to the core currency set), sorted
// for reproducibility. Falls back to a hard-coded common-market list
// intersected with the available set if generation yields nothing.
func GenerateTriangles(availableSymbols []string) []Triangle {
	available := make(map[string]bool)
	var core []string
	for _, s := range availableSymbols {
		if IsCoreSymbol(s) {
			available[s] = true
			core = append(core, s)
		}
	}

	seen := make(map[string]bool)
	var triangles []Triangle

	for i := 0; i < len(core); i++ {
		for j := 0; j < len(core); j++ {
			if i == j {
				continue
			}
			for k := 0; k < len(core); k++ {
				if k == i || k == j {
					continue
				}
				p1, p2, p3 := core[i], core[j], core[k]
				if !validatesClosure(p1, p2, p3) {
					continue
				}
				t := Triangle{P1: p1, P2: p2, P3: p3}
				sig := triangleSignature(t)
				if seen[sig] {
					continue
				}
				seen[sig] = true
				triangles = append(triangles, t)
			}
		}
	}

	if len(triangles) == 0 {
		for _, t := range fallbackTriangles {
			if available[t.P1] && available[t.P2] && available[t.P3] {
				triangles = append(triangles, t)
			}
		}
	}

	sort.Slice(triangles, func(i, j int) bool {
		return triangles[i].String() < triangles[j].String()
	})
	return triangles
}

// SelectByRegimePriority filters the full triangle list per spec §4.4's
// regime-aware priority rule.
func SelectByRegimePriority(triangles []Triangle, regime string) []Triangle {
	switch regime {
	case "volatile":
		var majors []Triangle
		for _, t := range triangles {
			if isMajorsOnly(t) {
				majors = append(majors, t)
				if len(majors) == 3 {
					break
				}
			}
		}
		return majors
	case "trending":
		if len(triangles) > 6 {
			return triangles[:6]
		}
		return triangles
	default:
		return triangles
	}
}

var majorCurrencies = map[string]bool{"EUR": true, "USD": true, "GBP": true, "JPY": true}

func isMajorsOnly(t Triangle) bool {
	for _, pair := range []string{t.P1, t.P2, t.P3} {
		b, q := currencies(pair)
		if !majorCurrencies[b] || !majorCurrencies[q] {
			return false
		}
	}
	return true
}
