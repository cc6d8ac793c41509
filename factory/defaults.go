package factory

import (
	"github.com/shopspring/decimal"

	"github.com/cadrimil/engine/diaria"
)

// =============================================================================
// BUILT-IN TABLE - used when neither the remote source nor the cache answer
// =============================================================================

// defaultRates is the table shipped with the first version of the app:
// seven rank groups by four locality bands.
var defaultRates = map[diaria.GroupKey][4]string{
	"A": {"406.70", "386.37", "364.00", "321.29"},
	"B": {"321.10", "304.20", "287.30", "253.50"},
	"C": {"267.90", "253.80", "239.70", "211.50"},
	"D": {"224.20", "212.40", "200.60", "177.00"},
	"E": {"224.20", "212.40", "200.60", "177.00"},
	"F": {"186.20", "176.40", "166.60", "147.00"},
	"G": {"186.20", "176.40", "166.60", "147.00"},
}

var defaultLocalities = [4]diaria.LocalityKey{"l1", "l2", "l3", "l4"}

// DefaultAllowance is the AED value of the built-in table.
var DefaultAllowance = decimal.RequireFromString("95.00")

// DefaultRateTable returns a fresh copy of the built-in table.
func DefaultRateTable() diaria.RateTable {
	t := diaria.RateTable{
		Groups: map[diaria.GroupKey]string{
			"A": "Comandantes de Força, Chefe do Estado-Maior Conjunto e Oficiais-Generais de quatro estrelas",
			"B": "Oficiais-Generais",
			"C": "Oficiais Superiores",
			"D": "Oficiais Intermediários e Subalternos",
			"E": "Suboficiais, Subtenentes e Sargentos",
			"F": "Cadetes, Aspirantes e Alunos de escolas de formação",
			"G": "Cabos, Taifeiros, Marinheiros e Soldados",
		},
		Localities: map[diaria.LocalityKey]string{
			"l1": "Brasília, Manaus e Rio de Janeiro",
			"l2": "Belo Horizonte, Fortaleza, Porto Alegre, Recife, Salvador e São Paulo",
			"l3": "Demais capitais de estados",
			"l4": "Demais deslocamentos",
		},
		Rates: make(map[diaria.GroupKey]map[diaria.LocalityKey]decimal.Decimal, len(defaultRates)),
		Allowance: diaria.Allowance{
			Title: "Adicional de Embarque e Desembarque (AED)",
			Value: DefaultAllowance,
		},
		Decrees: []diaria.Decree{
			{
				Title:  "Diárias",
				Decree: "Decreto nº 4.307",
				Date:   "18/07/2002",
				Link:   "https://www.planalto.gov.br/ccivil_03/decreto/2002/d4307.htm",
			},
		},
	}

	for group, values := range defaultRates {
		byLocality := make(map[diaria.LocalityKey]decimal.Decimal, len(values))
		for i, v := range values {
			byLocality[defaultLocalities[i]] = decimal.RequireFromString(v)
		}
		t.Rates[group] = byLocality
	}
	return t
}
