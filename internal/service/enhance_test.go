package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnhanceQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		enhanced bool
	}{
		{"投资关键词命中", "What was the investment in Loopit?", true},
		{"估值关键词命中", "latest valuation of Amaka", true},
		{"关键词大小写不敏感", "Series A ROUND for SecureStack", true},
		{"多词关键词命中", "term sheet for the new deal", true},
		{"无关查询原样返回", "What is the weather today?", false},
		{"关键词作为子串也命中", "reinvestment strategy", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enhanceQuery(tt.query)
			if tt.enhanced {
				assert.Equal(t, tt.query+enhanceSuffix, got)
				assert.True(t, strings.HasPrefix(got, tt.query), "增强只追加后缀，不改写原查询")
			} else {
				assert.Equal(t, tt.query, got)
			}
		})
	}
}

func TestEnhanceQueryDeterministic(t *testing.T) {
	query := "funding round for Wonde"
	first := enhanceQuery(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, enhanceQuery(query))
	}
}

func TestIsInvestmentQuery(t *testing.T) {
	assert.True(t, isInvestmentQuery("total investment across the portfolio"))
	assert.True(t, isInvestmentQuery("What amount did we put in?"))
	assert.True(t, isInvestmentQuery("FUNDING history"))
	assert.True(t, isInvestmentQuery("series b round"))
	assert.False(t, isInvestmentQuery("Who sits on the board of Predelo?"))
	assert.False(t, isInvestmentQuery("valuation of Circle In"))
}
