package model

import "encoding/json"

// Token is the answer of the OAuth2 username-password flow.
type Token struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
	Signature   string `json:"signature"`
}

type QueryResult[T any] struct {
	TotalSize      int    `json:"totalSize"`
	Done           bool   `json:"done"`
	NextRecordsURL string `json:"nextRecordsUrl,omitempty"`
	Records        []T    `json:"records"`
}

func (q QueryResult[T]) HasMore() bool {
	return !q.Done && q.NextRecordsURL != ""
}

type ReportRef struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// ReportResult keeps the analytics payload opaque: its shape depends on the
// report format.
type ReportResult struct {
	ReportMetadata json.RawMessage `json:"reportMetadata"`
	FactMap        json.RawMessage `json:"factMap"`
}

type SaveResult struct {
	ID      string            `json:"id"`
	Success bool              `json:"success"`
	Errors  []json.RawMessage `json:"errors"`
}
