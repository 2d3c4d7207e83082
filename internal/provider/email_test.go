package provider

import (
	"errors"
	"net/textproto"
	"testing"

	"github.com/ndidit/notifyhub/internal/dtos"
)

func TestClassifySMTPErrorTerminalOn5xx(t *testing.T) {
	err := classifySMTPError(&textproto.Error{Code: 550, Msg: "mailbox unavailable"})

	f := dtos.AsFailure(err)
	if f.Kind != dtos.KindTerminalDelivery || f.Retryable {
		t.Fatalf("expected non-retryable terminal failure, got %+v", f)
	}
}

func TestClassifySMTPErrorRetryableOn4xx(t *testing.T) {
	err := classifySMTPError(&textproto.Error{Code: 451, Msg: "try again later"})

	f := dtos.AsFailure(err)
	if f.Kind != dtos.KindTransientDelivery || !f.Retryable {
		t.Fatalf("expected retryable transient failure, got %+v", f)
	}
}

func TestClassifySMTPErrorRetryableOnTransportError(t *testing.T) {
	err := classifySMTPError(errors.New("dial tcp: i/o timeout"))

	f := dtos.AsFailure(err)
	if !f.Retryable {
		t.Fatalf("expected retryable failure for transport error, got %+v", f)
	}
}
