package model

// Company 对应 Weaviate 中结构化的 Company 对象类。
type Company struct {
	Name                string  `json:"name"`
	Logo                string  `json:"logo,omitempty"`
	Industry            string  `json:"industry,omitempty"`
	Stage               string  `json:"stage,omitempty"`
	Valuation           float64 `json:"valuation"`
	InvestmentAmount    float64 `json:"investmentAmount"`
	OwnershipPercentage float64 `json:"ownershipPercentage"`
}

// Investor 对应 Weaviate 中结构化的 Investor 对象类。
type Investor struct {
	Name string `json:"name"`
	Firm string `json:"firm,omitempty"`
	Type string `json:"type,omitempty"`
}

// Investment 对应 Weaviate 中结构化的 Investment 对象类。
type Investment struct {
	CompanyName        string  `json:"companyName,omitempty"`
	Round              string  `json:"round,omitempty"`
	InvestmentAmount   float64 `json:"investmentAmount"`
	Date               string  `json:"date,omitempty"`
	LeadInvestor       string  `json:"leadInvestor,omitempty"`
	PreMoneyValuation  float64 `json:"preMoneyValuation"`
	PostMoneyValuation float64 `json:"postMoneyValuation"`
}

// StructuredData 是投资类查询额外拉取的结构化上下文。
// 拉取失败只影响该字段（置空），不影响主检索链路。
type StructuredData struct {
	Investments       []Investment `json:"investments,omitempty"`
	Companies         []Company    `json:"companies,omitempty"`
	Investors         []Investor   `json:"investors,omitempty"`
	TotalRaised       float64      `json:"totalRaised"`
	AverageInvestment float64      `json:"averageInvestment"`
}

// PortfolioCompany 是公司名录启发式抽取的输出。
// 该数据由正则从自由文本里挖出，属于尽力而为的近似值，不是权威结构化数据。
type PortfolioCompany struct {
	CompanyID       string  `json:"company_id"`
	Name            string  `json:"name"`
	Industry        string  `json:"industry"`
	TotalInvestment float64 `json:"totalInvestment"`
	InvestmentYear  int     `json:"investmentYear,omitempty"`
	DocumentCount   int     `json:"documentCount"`
	Status          string  `json:"status"`
	Description     string  `json:"description"`
	Stage           string  `json:"stage"`
	FairValue       float64 `json:"fairValue"`
	ROI             float64 `json:"roi"`
}
