package grpc

import "time"

type CreateReportRequest struct {
	Content    string `json:"content"`
	Passphrase string `json:"passphrase"`
}

type CreateReportResponse struct {
	ReportID  string    `json:"report_id"`
	CreatedAt time.Time `json:"created_at"`
}

type UpdateReportRequest struct {
	ReportID   string `json:"report_id"`
	Content    string `json:"content"`
	Passphrase string `json:"passphrase"`
}

type UpdateReportResponse struct {
	ReportID string     `json:"report_id"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
}

type OpenReportRequest struct {
	ReportID   string `json:"report_id"`
	Passphrase string `json:"passphrase"`
}

type OpenReportResponse struct {
	Content string `json:"content"`
}

type DeleteReportRequest struct {
	ReportID string `json:"report_id"`
}

type DeleteReportResponse struct{}

type SubmitMatchRequest struct {
	ReportID   string `json:"report_id"`
	Contact    string `json:"contact"`
	Identifier string `json:"identifier"`
	Content    string `json:"content,omitempty"`
}

type SubmitMatchResponse struct {
	MatchReportID string `json:"match_report_id"`
}

type SubmitReportRequest struct {
	ReportID   string `json:"report_id"`
	Passphrase string `json:"passphrase"`
}

type SubmitReportResponse struct {
	SentReportID string `json:"sent_report_id"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
