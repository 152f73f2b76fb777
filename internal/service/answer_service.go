package service

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"verona-ai-go/internal/model"
	"verona-ai-go/pkg/llm"
	"verona-ai-go/pkg/log"
)

const maxContextChunks = 10
const maxExcerptLength = 500

var digitRe = regexp.MustCompile(`\d+`)

// AnswerService 接口定义了答案合成操作。
type AnswerService interface {
	// GenerateAnswer 合成最终回答。生成失败时返回 low 置信度的兜底结果，
	// 不向上抛错：接口层永远能拿到可渲染的 AnswerResult。
	GenerateAnswer(ctx context.Context, query string, chunks []model.DocumentChunk, groups []model.CompanyGroup, structured *model.StructuredData) model.AnswerResult
	// StreamAnswer 流式合成回答，分块写入 writer。
	StreamAnswer(ctx context.Context, query string, chunks []model.DocumentChunk, groups []model.CompanyGroup, writer llm.MessageWriter) error
}

type answerService struct {
	llmClient llm.Client
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(llmClient llm.Client) AnswerService {
	return &answerService{llmClient: llmClient}
}

// GenerateAnswer 构建上下文并调用生成模型。
func (s *answerService) GenerateAnswer(ctx context.Context, query string, chunks []model.DocumentChunk, groups []model.CompanyGroup, structured *model.StructuredData) model.AnswerResult {
	prompt := buildPrompt(query, buildContext(chunks, groups, structured))

	answer, err := s.llmClient.GenerateAnswer(ctx, prompt)
	if err != nil {
		log.Errorf("[AnswerService] 答案生成失败, 返回兜底回答: %v", err)
		return model.AnswerResult{
			Answer: fmt.Sprintf("I found %d relevant documents, but I'm having trouble processing them right now. "+
				"Please try rephrasing your question or check the search results below for specific information.", len(chunks)),
			Confidence: model.ConfidenceLow,
			Sources:    extractSources(chunks),
		}
	}

	answer = strings.TrimSpace(answer)
	return model.AnswerResult{
		Answer:     answer,
		Confidence: determineConfidence(answer, len(chunks)),
		Sources:    extractSources(chunks),
	}
}

// StreamAnswer 以相同的上下文构建逻辑走流式生成。
func (s *answerService) StreamAnswer(ctx context.Context, query string, chunks []model.DocumentChunk, groups []model.CompanyGroup, writer llm.MessageWriter) error {
	prompt := buildPrompt(query, buildContext(chunks, groups, nil))
	return s.llmClient.StreamAnswer(ctx, prompt, writer)
}

// buildContext 从最多前 10 个分块与公司分组摘要构建有界上下文。
// 完整文档从不整段传入，控制 token 成本。
func buildContext(chunks []model.DocumentChunk, groups []model.CompanyGroup, structured *model.StructuredData) string {
	var b strings.Builder
	b.WriteString("PORTFOLIO DOCUMENTS CONTEXT:\n\n")

	for i, g := range groups {
		docTypes := dedupStrings(g.Documents, func(d model.DocumentChunk) string { return d.DocumentType })
		fmt.Fprintf(&b, "Company %d: %s\n", i+1, cleanCompanyName(g.Company))
		fmt.Fprintf(&b, "Documents: %d found\n", len(g.Documents))
		fmt.Fprintf(&b, "Document Types: %s\n", strings.Join(docTypes, ", "))
		fmt.Fprintf(&b, "Relevance Score: %.2f\n\n", g.AverageScore)
	}

	b.WriteString("DETAILED DOCUMENT CONTENT:\n\n")
	for i, c := range chunks {
		if i >= maxContextChunks {
			break
		}
		excerpt := truncateBytes(c.Content, maxExcerptLength)
		fileName := "N/A"
		if c.FilePath != "" {
			fileName = path.Base(c.FilePath)
		}
		section := c.SectionType
		if section == "" {
			section = "N/A"
		}
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		fmt.Fprintf(&b, "- Company: %s\n", c.CompanyName)
		fmt.Fprintf(&b, "- Type: %s\n", c.DocumentType)
		fmt.Fprintf(&b, "- Section: %s\n", section)
		fmt.Fprintf(&b, "- Content: %s...\n", excerpt)
		fmt.Fprintf(&b, "- File: %s\n\n", fileName)
	}

	if structured != nil && len(structured.Investments) > 0 {
		b.WriteString("\nPortfolio Summary:\n")
		fmt.Fprintf(&b, "- Total Investment Amount: $%.0f\n", structured.TotalRaised)
		fmt.Fprintf(&b, "- Average Investment: $%.0f\n", structured.AverageInvestment)
		fmt.Fprintf(&b, "- Number of Investment Rounds: %d\n", len(structured.Investments))
	}

	return b.String()
}

func buildPrompt(query, context string) string {
	return fmt.Sprintf(`You are an AI assistant for a venture capital firm's portfolio management system. You have access to portfolio documents and company information.

Your task is to answer questions about the VC portfolio based on the provided document context. Be direct, accurate, and professional in your responses.

IMPORTANT GUIDELINES:
1. Answer the user's question directly and specifically
2. Use actual data from the documents when available
3. If you find specific investment amounts, company details, or financial information, include them
4. Be conversational but professional
5. If information isn't available, say so clearly
6. Focus on being helpful for portfolio management decisions

USER QUESTION: "%s"

%s

Please provide a direct, helpful answer based on the portfolio documents. If you reference specific information, mention which company or document it came from.`, query, context)
}

// extractSources 从分块中去重提取来源：公司名优先，其次文档类型。
// 返回顺序与分块顺序一致。
func extractSources(chunks []model.DocumentChunk) []string {
	seen := make(map[string]struct{})
	sources := make([]string, 0)
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}
	for _, c := range chunks {
		add(cleanCompanyName(c.CompanyName))
		add(c.DocumentType)
	}
	return sources
}

// determineConfidence 根据结果数量与回答中的财务信号推导置信度标签。
// 这是保守的展示性启发式，不是统计意义上的置信区间。
func determineConfidence(answer string, resultCount int) model.Confidence {
	if resultCount > 5 && (strings.Contains(answer, "$") ||
		strings.Contains(answer, "investment") ||
		strings.Contains(answer, "company") ||
		digitRe.MatchString(answer)) {
		return model.ConfidenceHigh
	}
	if resultCount > 2 {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

func dedupStrings(chunks []model.DocumentChunk, key func(model.DocumentChunk) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range chunks {
		k := key(c)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
