package main

import (
	"net/url"
	"strings"
)

// urlWithToken injects a token into a NATS URL.
func urlWithToken(raw, token string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = url.User(token)
	return u.String()
}

// urlWithUser injects user/password into a NATS URL.
func urlWithUser(raw, user, password string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = url.UserPassword(user, password)
	return u.String()
}

// shortAID abbreviates an aggregate ID for log lines.
func shortAID(aid string) string {
	if i := strings.IndexByte(aid, '-'); i > 0 {
		return aid[:i]
	}
	if len(aid) > 8 {
		return aid[:8]
	}
	return aid
}
