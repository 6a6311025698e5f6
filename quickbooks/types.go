package quickbooks

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ref QuickBooks 引用对象（科目、部门等）
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

// JournalEntryLineDetail 日记账分录行明细
type JournalEntryLineDetail struct {
	PostingType   string `json:"PostingType"`
	AccountRef    Ref    `json:"AccountRef"`
	DepartmentRef *Ref   `json:"DepartmentRef,omitempty"`
}

// JournalEntryLine 日记账分录行
type JournalEntryLine struct {
	ID                     string                  `json:"Id"`
	Description            string                  `json:"Description"`
	Amount                 decimal.Decimal         `json:"Amount"`
	DetailType             string                  `json:"DetailType"`
	JournalEntryLineDetail *JournalEntryLineDetail `json:"JournalEntryLineDetail,omitempty"`
}

// JournalEntry 日记账分录
type JournalEntry struct {
	ID      string             `json:"Id"`
	TxnDate string             `json:"TxnDate"`
	DocNum  string             `json:"DocNumber"`
	Line    []JournalEntryLine `json:"Line"`
}

// AccountBasedExpenseLineDetail 费用行明细
type AccountBasedExpenseLineDetail struct {
	AccountRef Ref `json:"AccountRef"`
}

// PurchaseLine 支出行
type PurchaseLine struct {
	ID                            string                         `json:"Id"`
	Amount                        decimal.Decimal                `json:"Amount"`
	DetailType                    string                         `json:"DetailType"`
	AccountBasedExpenseLineDetail *AccountBasedExpenseLineDetail `json:"AccountBasedExpenseLineDetail,omitempty"`
}

// Purchase 支出交易
type Purchase struct {
	ID            string          `json:"Id"`
	TxnDate       string          `json:"TxnDate"`
	TotalAmt      decimal.Decimal `json:"TotalAmt"`
	DepartmentRef *Ref            `json:"DepartmentRef,omitempty"`
	Line          []PurchaseLine  `json:"Line"`
}

// DepartmentName 部门名称，未关联部门时为空
func (p Purchase) DepartmentName() string {
	if p.DepartmentRef == nil {
		return ""
	}
	return p.DepartmentRef.Name
}

type queryResponse struct {
	QueryResponse struct {
		JournalEntry  []JournalEntry `json:"JournalEntry"`
		Purchase      []Purchase     `json:"Purchase"`
		StartPosition int            `json:"startPosition"`
		MaxResults    int            `json:"maxResults"`
	} `json:"QueryResponse"`
	Fault *fault `json:"Fault,omitempty"`
}

type fault struct {
	Error []struct {
		Message string `json:"Message"`
		Detail  string `json:"Detail"`
		Code    string `json:"code"`
	} `json:"Error"`
	Type string `json:"type"`
}

func (f *fault) message() string {
	if f == nil || len(f.Error) == 0 {
		return ""
	}
	if f.Error[0].Detail != "" {
		return f.Error[0].Detail
	}
	return f.Error[0].Message
}

// TokenResponse OAuth2 刷新令牌响应
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

const qbDateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.Format(qbDateLayout)
}
