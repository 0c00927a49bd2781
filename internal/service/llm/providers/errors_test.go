package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"repairchat/internal/domain"
)

func TestClassifyTransportError(t *testing.T) {
	dial := &url.Error{Op: "Post", URL: "http://127.0.0.1:1", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	dns := &url.Error{Op: "Post", URL: "http://nowhere.invalid", Err: &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}}
	rejected := &domain.UpstreamRejectedError{ProviderStatus: 400, Body: "bad"}

	tests := []struct {
		name string
		err  error
		want any
	}{
		{"dial failure", dial, &domain.UpstreamConnectionError{}},
		{"dns failure", dns, &domain.UpstreamConnectionError{}},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), &domain.UpstreamConnectionError{}},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), &domain.UpstreamFailureError{}},
		{"already classified", rejected, &domain.UpstreamRejectedError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(tt.err)
			assert.IsType(t, tt.want, got)
			assert.ErrorIs(t, got, domain.ErrUpstream)
		})
	}

	assert.Nil(t, ClassifyTransportError(nil))
}
