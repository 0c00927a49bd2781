// Package providers holds what the completion provider clients share.
package providers

import (
	"context"
	"errors"
	"net"
	"syscall"

	"repairchat/internal/domain"
)

// ClassifyTransportError maps an error that is not a provider error
// response onto the upstream taxonomy. Failing to reach the provider at all
// (dial, DNS, refused, timeout) is a connection error; anything else, such
// as a reset mid-read or an undecodable body, is a transport failure.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}

	var (
		connErr *domain.UpstreamConnectionError
		rejErr  *domain.UpstreamRejectedError
		failErr *domain.UpstreamFailureError
	)
	if errors.As(err, &connErr) || errors.As(err, &rejErr) || errors.As(err, &failErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return &domain.UpstreamConnectionError{Cause: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &domain.UpstreamConnectionError{Cause: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &domain.UpstreamConnectionError{Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.UpstreamConnectionError{Cause: err}
	}

	return &domain.UpstreamFailureError{Cause: err}
}
