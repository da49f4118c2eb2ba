// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package proxy describes an outbound proxy and builds HTTP transports that
// route through it.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	netproxy "golang.org/x/net/proxy"

	apperrors "shellai/internal/errors"
)

// Supported proxy types.
const (
	TypeHTTP   = "http"
	TypeHTTPS  = "https"
	TypeSOCKS5 = "socks5"
)

// Auth holds proxy credentials. Both fields must be set or both empty.
type Auth struct {
	Username string `json:"username" yaml:"username" validate:"required_with=Password"`
	Password string `json:"password" yaml:"password" validate:"required_with=Username"`
}

// Config is the proxy descriptor sent by clients.
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Type    string `json:"type" yaml:"type" validate:"oneof=http https socks5"`
	Host    string `json:"host" yaml:"host" validate:"required,hostname_rfc1123|ip"`
	Port    int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	Auth    *Auth  `json:"auth,omitempty" yaml:"auth,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Active reports whether the descriptor asks for proxying at all.
func (c *Config) Active() bool {
	return c != nil && c.Enabled
}

// Validate rejects incomplete or malformed descriptors. A disabled or nil
// descriptor is valid and means a direct connection.
func (c *Config) Validate() error {
	if !c.Active() {
		return nil
	}
	normalized := *c
	normalized.Type = strings.ToLower(strings.TrimSpace(c.Type))
	normalized.Host = strings.TrimSpace(c.Host)

	err := validate.Struct(normalized)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid proxy configuration", err)
	}
	return apperrors.New(apperrors.CodeInvalidArgument, describe(fieldErrs[0], c))
}

func describe(fe validator.FieldError, c *Config) string {
	switch fe.StructField() {
	case "Type":
		return fmt.Sprintf("unsupported proxy type '%s', use http, https or socks5", c.Type)
	case "Host":
		if fe.Tag() == "required" {
			return "proxy host is required"
		}
		return fmt.Sprintf("invalid proxy host '%s'", c.Host)
	case "Port":
		return fmt.Sprintf("proxy port %d is out of range (1-65535)", c.Port)
	case "Username", "Password":
		return "proxy auth requires both username and password"
	}
	return fmt.Sprintf("invalid proxy field %s", fe.Field())
}

// URL renders the descriptor as a proxy URL including credentials.
func (c *Config) URL() *url.URL {
	u := &url.URL{
		Scheme: strings.ToLower(strings.TrimSpace(c.Type)),
		Host:   net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port)),
	}
	if c.Auth != nil && c.Auth.Username != "" {
		u.User = url.UserPassword(c.Auth.Username, c.Auth.Password)
	}
	return u
}

// Redacted renders the proxy URL without the password, for logs.
func (c *Config) Redacted() string {
	if !c.Active() {
		return "direct"
	}
	return c.URL().Redacted()
}

// NewTransport returns a transport that routes through c. A nil or disabled
// descriptor yields a direct transport. Invalid descriptors are rejected.
func NewTransport(c *Config) (*http.Transport, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		base = &http.Transport{}
	}
	tr := base.Clone()
	if !c.Active() {
		return tr, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	target := c.URL()
	switch target.Scheme {
	case TypeHTTP, TypeHTTPS:
		tr.Proxy = http.ProxyURL(target)
	case TypeSOCKS5:
		var auth *netproxy.Auth
		if c.Auth != nil && c.Auth.Username != "" {
			auth = &netproxy.Auth{User: c.Auth.Username, Password: c.Auth.Password}
		}
		dialer, err := netproxy.SOCKS5("tcp", target.Host, auth, &net.Dialer{Timeout: 30 * time.Second})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, "failed to configure socks5 proxy", err)
		}
		contextDialer, ok := dialer.(netproxy.ContextDialer)
		if !ok {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "socks5 dialer does not support contexts")
		}
		tr.Proxy = nil
		tr.DialContext = contextDialer.DialContext
	}
	return tr, nil
}

// NewHTTPClient returns a client with the given timeout that routes through c.
func NewHTTPClient(c *Config, timeout time.Duration) (*http.Client, error) {
	tr, err := NewTransport(c)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// DefaultProbeURL is requested by Probe when no URL is given.
const DefaultProbeURL = "https://www.google.com/generate_204"

// Probe sends a HEAD request to probeURL through c and reports the status.
func Probe(ctx context.Context, c *Config, probeURL string, timeout time.Duration) (int, error) {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	client, err := NewHTTPClient(c, timeout)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid probe URL", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeTransientNetwork, fmt.Sprintf("probe through %s failed", c.Redacted()), err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
