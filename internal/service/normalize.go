package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/weaviate"
)

const snippetLength = 200

// normalizeChunks 把不同 schema 版本的原始对象统一映射为 DocumentChunk。
// 字段名差异（text/content、离散财务列/JSON blob）只在这一层消化，
// 下游业务逻辑不再出现逐字段兜底。
func normalizeChunks(profile string, objs []weaviate.RawObject) []model.DocumentChunk {
	chunks := make([]model.DocumentChunk, 0, len(objs))
	for i, o := range objs {
		var c model.DocumentChunk
		if profile == "legacy" {
			c = legacyChunk(o)
		} else {
			c = productionChunk(o)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("result-%d", i)
		}
		if c.CompanyName == "" {
			c.CompanyName = "Unknown Company"
		}
		if c.Content == "" {
			c.Content = "No content available"
		}
		c.Snippet = makeSnippet(c.Content)
		chunks = append(chunks, c)
	}
	return chunks
}

// productionChunk 映射新 schema（离散财务列）。
func productionChunk(o weaviate.RawObject) model.DocumentChunk {
	extracted := model.ExtractedFields{
		InvestmentAmount:    weaviate.NumberField(o, "investment_amount"),
		PreMoneyValuation:   weaviate.NumberField(o, "pre_money_valuation"),
		PostMoneyValuation:  weaviate.NumberField(o, "post_money_valuation"),
		FairValue:           weaviate.NumberField(o, "fair_value"),
		OwnershipPercentage: weaviate.NumberField(o, "ownership_percentage"),
	}
	// 离散列全空时回退到 claude_extraction JSON blob
	if extracted == (model.ExtractedFields{}) {
		if blob := weaviate.StringField(o, "claude_extraction"); blob != "" {
			_ = json.Unmarshal([]byte(blob), &extracted)
		}
	}
	return model.DocumentChunk{
		ID:                   weaviate.StringField(o, "chunk_id"),
		Title:                weaviate.StringField(o, "document_type"),
		CompanyName:          weaviate.StringField(o, "company_name"),
		DocumentType:         weaviate.StringField(o, "document_type"),
		Industry:             weaviate.StringField(o, "industry"),
		Content:              weaviate.StringField(o, "content"),
		Score:                weaviate.Score(o),
		ExtractionConfidence: weaviate.NumberField(o, "extraction_confidence"),
		Extracted:            extracted,
		HasInvestmentAmount:  extracted.InvestmentAmount > 0,
		HasValuation:         extracted.PreMoneyValuation > 0,
		HasOwnership:         extracted.OwnershipPercentage > 0,
		HasFairValue:         extracted.FairValue > 0,
	}
}

// legacyChunk 映射旧 schema（text 字段 + extracted_fields JSON blob）。
func legacyChunk(o weaviate.RawObject) model.DocumentChunk {
	var extracted model.ExtractedFields
	if blob := weaviate.StringField(o, "extracted_fields"); blob != "" {
		// blob 解析失败时保留零值，不中断整条结果
		_ = json.Unmarshal([]byte(blob), &extracted)
	}
	docType := weaviate.StringField(o, "document_type")
	section := weaviate.StringField(o, "section_type")
	title := docType
	if title == "" {
		title = "Document"
	}
	if section != "" {
		title = title + " - " + section
	}
	return model.DocumentChunk{
		ID:                  weaviate.StringField(o, "chunk_id"),
		Title:               title,
		CompanyName:         weaviate.StringField(o, "company_name"),
		DocumentType:        docType,
		SectionType:         section,
		FilePath:            weaviate.StringField(o, "file_path"),
		Content:             weaviate.StringField(o, "text"),
		Score:               weaviate.Score(o),
		Extracted:           extracted,
		HasInvestmentAmount: extracted.InvestmentAmount > 0,
		HasValuation:        extracted.PreMoneyValuation > 0,
		HasOwnership:        extracted.OwnershipPercentage > 0,
		HasFairValue:        extracted.FairValue > 0,
	}
}

func makeSnippet(content string) string {
	if len(content) <= snippetLength {
		return content
	}
	return truncateBytes(content, snippetLength) + "..."
}

// truncateBytes 在不超过 max 字节的前提下按完整字符截断，
// 避免把多字节字符从中间切开产生非法序列。
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// groupByCompany 把分块按公司名聚合为 CompanyGroup。
// averageScore = totalScore / len(documents)，分组恒非空；
// 结果按 averageScore 降序，序稳定以保证相同输入得到相同输出。
func groupByCompany(chunks []model.DocumentChunk) []model.CompanyGroup {
	index := make(map[string]int)
	groups := make([]model.CompanyGroup, 0)

	for _, c := range chunks {
		i, ok := index[c.CompanyName]
		if !ok {
			i = len(groups)
			index[c.CompanyName] = i
			groups = append(groups, model.CompanyGroup{
				Company:  c.CompanyName,
				Industry: c.Industry,
			})
		}
		g := &groups[i]
		g.Documents = append(g.Documents, c)
		g.TotalScore += c.Score
		g.HasInvestmentAmount = g.HasInvestmentAmount || c.HasInvestmentAmount
		g.HasValuation = g.HasValuation || c.HasValuation
		g.HasOwnership = g.HasOwnership || c.HasOwnership
		g.HasFairValue = g.HasFairValue || c.HasFairValue
		if c.Extracted.InvestmentAmount > 0 {
			g.TotalInvestmentAmount += c.Extracted.InvestmentAmount
		}
		if c.Extracted.PreMoneyValuation > 0 {
			g.TotalValuation += c.Extracted.PreMoneyValuation
		}
		if c.Extracted.OwnershipPercentage > 0 {
			g.AverageOwnership += c.Extracted.OwnershipPercentage
		}
	}

	for i := range groups {
		g := &groups[i]
		g.AverageScore = g.TotalScore / float64(len(g.Documents))
		var confSum float64
		for _, d := range g.Documents {
			confSum += d.ExtractionConfidence
		}
		g.AverageConfidence = confSum / float64(len(g.Documents))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].AverageScore > groups[j].AverageScore
	})
	return groups
}

// cleanCompanyName 去掉公司名前面的序号（如 "4. Lasertrade"）。
func cleanCompanyName(name string) string {
	return strings.TrimSpace(numberPrefixRe.ReplaceAllString(name, ""))
}
