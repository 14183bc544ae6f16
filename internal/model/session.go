package model

import "net/http"

// SessionProof is what a successful authentication hands back to callers.
type SessionProof struct {
	Service     string
	Principal   string
	Token       string
	InstanceURL string
	Cookies     []*http.Cookie
}
