package model

import "time"

// AuditLog is a single recorded request/response pair.
type AuditLog struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ClientID      string `json:"client_id" gorm:"index"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	IP            string `json:"ip"`
	UserAgent     string `json:"user_agent"`
	RequestBody   string `json:"request_body"`
	RequestHeader string `json:"request_header"`
	StatusCode    int    `json:"status_code"`
	ResponseBody  string `json:"response_body"`
	LatencyMs     int64  `json:"latency_ms"`

	// Context carries business-layer detail attached during the request
	// via middleware.AddAuditContext (the swap handlers attach the outcome
	// status).
	Context map[string]interface{} `json:"context" gorm:"serializer:json"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
