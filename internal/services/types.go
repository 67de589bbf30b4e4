package services

// LabResult 单项化验结果
type LabResult struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ClinicalData 结构化化验数据
type ClinicalData struct {
	Results []LabResult `json:"results"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Message      string        `json:"message"`
	Language     string        `json:"language"`
	ClinicalData *ClinicalData `json:"clinical_data,omitempty"`
	Treatment    string        `json:"treatment,omitempty"`
}

// IsBloodWork 是否为化验单请求
func (r *ChatRequest) IsBloodWork() bool {
	return r.ClinicalData != nil
}

// ChatResponse 聊天响应
// 正常回答与各级降级回答共享同一形状
type ChatResponse struct {
	Response           string   `json:"response"`
	Citations          []string `json:"citations"`
	SuggestedQuestions []string `json:"suggested_questions"`
	IsGap              bool     `json:"is_gap"`
	Cached             bool     `json:"cached"`
	ChatID             uint     `json:"chat_id,omitempty"`
}

// FeedbackRequest 反馈提交请求
type FeedbackRequest struct {
	ChatID             *uint    `json:"chat_id,omitempty"`
	Question           string   `json:"question" validate:"required"`
	Answer             string   `json:"answer" validate:"required"`
	Rating             int      `json:"rating" validate:"required,min=1,max=5"`
	Reason             string   `json:"reason,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
}

// FeedbackResponse 反馈提交确认
type FeedbackResponse struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}
