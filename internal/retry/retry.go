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

// Package retry retries outbound calls that fail at the connection level.
package retry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/lestrrat-go/backoff/v2"

	apperrors "shellai/internal/errors"
)

// Policy bounds the retry loop.
type Policy struct {
	Attempts    int
	MinInterval time.Duration
	MaxInterval time.Duration
	Multiplier  float64
}

// DefaultPolicy makes three attempts with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:    3,
		MinInterval: 500 * time.Millisecond,
		MaxInterval: 5 * time.Second,
		Multiplier:  2,
	}
}

// Do calls fn until it succeeds, fails with a non-transient error, the
// attempts run out or ctx ends. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	ctrl := backoff.Exponential(
		backoff.WithMinInterval(p.MinInterval),
		backoff.WithMaxInterval(p.MaxInterval),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithJitterFactor(0.1),
		backoff.WithMaxRetries(p.Attempts),
	).Start(ctx)

	var err error
	for attempt := 1; backoff.Continue(ctrl); attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt >= p.Attempts {
			return err
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// IsTransient reports whether err is a connection-level, TLS or timeout
// failure. HTTP status errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeTransientNetwork:
		return true
	case apperrors.CodeHTTPStatus:
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
