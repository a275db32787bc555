package models

import "strings"

// Category is a chunk label from the closed taxonomy.
type Category string

const (
	CategorySignature  Category = "assinatura, identificação"
	CategoryDental     Category = "plano odontológico"
	CategoryHealth     Category = "plano de saúde"
	CategoryBenefits   Category = "valores, benefícios"
	CategoryTransport  Category = "vale transporte"
	CategoryDependents Category = "dependentes, inclusão"
	CategoryOther      Category = "outros"
)

// Taxonomy lists every category in the order shown to the classification model.
var Taxonomy = []Category{
	CategorySignature,
	CategoryDental,
	CategoryHealth,
	CategoryBenefits,
	CategoryTransport,
	CategoryDependents,
	CategoryOther,
}

// ParseCategory matches s against the taxonomy, ignoring case and surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Taxonomy {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
