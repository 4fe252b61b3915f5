package grpcx

import (
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/registry"
)

const errorDomain = "live-quiz"

// mapErr переводит доменные ошибки в gRPC-статусы с ErrorInfo.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, registry.ErrInvalidCursor) {
		err = domain.Invalid(domain.CodeInvalidMessage, "invalid cursor", nil)
	}

	e := domain.AsError(err)
	st := status.New(grpcCode(e.Code), e.Message)

	meta := make(map[string]string, len(e.Details))
	for k, v := range e.Details {
		meta[k] = fmt.Sprint(v)
	}
	withDetails, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(e.Code),
		Domain:   errorDomain,
		Metadata: meta,
	})
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

func grpcCode(c domain.Code) codes.Code {
	switch c {
	case domain.CodeSessionNotFound, domain.CodeParticipantNotFound:
		return codes.NotFound
	case domain.CodeUnauthorized:
		return codes.Unauthenticated
	case domain.CodeNotHost, domain.CodeRoleMismatch, domain.CodeParticipantRemoved:
		return codes.PermissionDenied
	case domain.CodeInvalidMessage, domain.CodeInvalidContent, domain.CodeUnknownOption:
		return codes.InvalidArgument
	case domain.CodeRateLimited:
		return codes.ResourceExhausted
	case domain.CodeInternal:
		return codes.Internal
	default:
		return codes.FailedPrecondition
	}
}

// ReasonOf достаёт доменный код из ErrorInfo статуса (для клиентов и тестов).
func ReasonOf(err error) domain.Code {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return domain.Code(info.GetReason())
		}
	}
	return ""
}
