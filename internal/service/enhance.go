// Package service 提供了检索问答相关的业务逻辑。
package service

import "strings"

// vcKeywords 是判定 VC 相关查询的固定关键词表。
// 命中即在查询后追加领域上下文词，提升语义检索召回。
var vcKeywords = []string{
	"investment", "investor", "funding", "round", "valuation", "deal", "term sheet",
	"subscription", "agreement", "participant", "lead investor", "venture", "capital",
	"equity", "shares", "stakeholder", "portfolio", "raise", "series", "seed",
	"liquidation preference", "anti-dilution", "board seats", "governance",
}

const enhanceSuffix = " venture capital investment terms governance"

// enhanceQuery 对查询做确定性的关键词增强。
// 纯函数：相同输入恒得相同输出；不做分词，不做词干化。
// 空查询由调用方在入口处拒绝，这里不校验。
func enhanceQuery(query string) string {
	lower := strings.ToLower(query)
	for _, kw := range vcKeywords {
		if strings.Contains(lower, kw) {
			return query + enhanceSuffix
		}
	}
	return query
}

// isInvestmentQuery 判断是否需要额外拉取结构化投资数据。
func isInvestmentQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range []string{"investment", "amount", "funding", "round"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
