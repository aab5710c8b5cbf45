package types

import (
	"time"

	"letter-portal/logic/routing"
)

// --- 请求 ---

type TargetRequest struct {
	Kind string `json:"kind" binding:"required"`
	ID   int64  `json:"id" binding:"required,gt=0"`
}

type CreateLetterRequest struct {
	LetterID   string          `json:"letter_id" binding:"required"`
	Sender     string          `json:"sender" binding:"required"`
	Recipient  string          `json:"recipient" binding:"required"`
	Subject    string          `json:"subject" binding:"required"`
	LetterType string          `json:"letter_type" binding:"required"`
	Targets    []TargetRequest `json:"targets" binding:"required,min=1,dive"`
}

type SignRequest struct {
	Descriptions string `json:"descriptions" binding:"required"`
	// Destination 为空表示最后一个单位签收, 不再转交
	Destination *TargetRequest `json:"destination"`
}

type ListLettersQuery struct {
	Status     string `form:"status"`
	LetterType string `form:"letter_type"`
	Keyword    string `form:"keyword"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

type InboxQuery struct {
	Status string `form:"status"`
}

// --- 响应 ---

type LetterView struct {
	LetterID   string               `json:"letter_id"`
	Sender     string               `json:"sender"`
	Recipient  string               `json:"recipient"`
	Subject    string               `json:"subject"`
	LetterType routing.LetterType   `json:"letter_type"`
	Status     routing.LetterStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
}

type SignatureView struct {
	SignatureID  int64                   `json:"signature_id"`
	LetterID     string                  `json:"letter_id"`
	Unit         routing.Unit            `json:"unit"`
	UnitName     string                  `json:"unit_name,omitempty"`
	Status       routing.SignatureStatus `json:"status"`
	Descriptions *string                 `json:"descriptions"`
	SignedDate   *time.Time              `json:"signed_date"`
}

// LetterDetail 信件及其全部签收行
type LetterDetail struct {
	Letter     LetterView      `json:"letter"`
	Signatures []SignatureView `json:"signatures"`
}

type LetterPage struct {
	Items  []LetterView `json:"items"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// InboxItem 某单位名下的一条签收行
type InboxItem struct {
	SignatureView
	Subject      string               `json:"subject"`
	Sender       string               `json:"sender"`
	LetterStatus routing.LetterStatus `json:"letter_status"`
}

// AuditReport 定时审计结果
type AuditReport struct {
	Checked      int               `json:"checked"`
	Inconsistent map[string]string `json:"inconsistent,omitempty"`
}
