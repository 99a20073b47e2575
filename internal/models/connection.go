package models

import (
	"net/http"
	"strings"
	"time"
)

// Header names that carry per-session Jenkins credentials.
const (
	HeaderJenkinsURL      = "x-jenkins-url"
	HeaderJenkinsUsername = "x-jenkins-username"
	HeaderJenkinsPassword = "x-jenkins-password"
)

// DefaultTimeout is the per-request Jenkins timeout in seconds.
const DefaultTimeout = 5

// Connection holds what is needed to talk to one Jenkins controller.
type Connection struct {
	URL       string `json:"url"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	Timeout   int    `json:"timeout"`    // seconds
	VerifySSL bool   `json:"verify_ssl"` // verify TLS certificates
}

// BaseURL returns the controller URL without trailing slashes.
func (c *Connection) BaseURL() string {
	return strings.TrimRight(c.URL, "/")
}

// TimeoutDuration returns the request timeout, falling back to DefaultTimeout.
func (c *Connection) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// Complete reports whether URL, username and password are all set.
func (c *Connection) Complete() bool {
	return c.URL != "" && c.Username != "" && c.Password != ""
}

// MaskedPassword returns a fixed mask for non-empty passwords.
func (c *Connection) MaskedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "••••••••"
}

// WithHeaders returns a copy of c with any x-jenkins-* headers applied on top.
func (c Connection) WithHeaders(h http.Header) Connection {
	if h == nil {
		return c
	}
	if v := h.Get(HeaderJenkinsURL); v != "" {
		c.URL = v
	}
	if v := h.Get(HeaderJenkinsUsername); v != "" {
		c.Username = v
	}
	if v := h.Get(HeaderJenkinsPassword); v != "" {
		c.Password = v
	}
	return c
}
