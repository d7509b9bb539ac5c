package rpc

import (
	"errors"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
	"github.com/tonkeeper/2fa-extension/model"
)

const errorDomain = "tfaguard"

// ErrorInfo metadata keys carried by guard rejections.
const (
	metaOp      = "op"
	metaMessage = "message"
)

var grpcCodes = map[model.ErrorCode]codes.Code{
	model.ErrInvalidRequest: codes.InvalidArgument,
	model.ErrNotFound:       codes.NotFound,
	model.ErrInternal:       codes.Internal,

	model.ErrorCode(guard.CodeInvalidCounter):    codes.FailedPrecondition,
	model.ErrorCode(guard.CodeExpired):           codes.FailedPrecondition,
	model.ErrorCode(guard.CodeBadSignature):      codes.Unauthenticated,
	model.ErrorCode(guard.CodeBlockedByRecovery): codes.FailedPrecondition,
	model.ErrorCode(guard.CodeDuplicateID):       codes.AlreadyExists,
	model.ErrorCode(guard.CodeUnknownID):         codes.NotFound,
	model.ErrorCode(guard.CodeParameterMismatch): codes.InvalidArgument,
	model.ErrorCode(guard.CodeNotPending):        codes.FailedPrecondition,
	model.ErrorCode(guard.CodeDelayNotElapsed):   codes.FailedPrecondition,
	model.ErrorCode(guard.CodeMalformed):         codes.InvalidArgument,
	model.ErrorCode(guard.CodeUnsupported):       codes.InvalidArgument,
	model.ErrorCode(guard.CodeNotInstalled):      codes.NotFound,
	model.ErrorCode(guard.CodeAlreadyInstalled):  codes.AlreadyExists,
	model.ErrorCode(guard.CodeNotOwner):          codes.PermissionDenied,
}

// toStatus maps err onto a gRPC status with an ErrorInfo detail naming the
// error code.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	ce := model.ErrorFrom(err)
	c, ok := grpcCodes[ce.Code]
	if !ok {
		c = codes.Unknown
	}
	st := status.New(c, ce.Message)
	info := &errdetails.ErrorInfo{Reason: string(ce.Code), Domain: errorDomain}
	var r *guard.Rejection
	if errors.As(err, &r) {
		info.Metadata = map[string]string{metaMessage: r.Message}
		if r.Op != 0 {
			info.Metadata[metaOp] = r.Op.String()
		}
	}
	if withInfo, derr := st.WithDetails(info); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// fromStatus reverses toStatus. Guard rejections come back as
// *guard.Rejection so callers can use guard.IsCode; other coded errors come
// back as *model.CodedError.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		ce := model.NewError(model.ErrorCode(info.GetReason()), st.Message())
		if code, ok := ce.Rejection(); ok {
			return rejectionFrom(code, info, st.Message(), err)
		}
		return ce
	}
	return err
}

func rejectionFrom(code guard.Code, info *errdetails.ErrorInfo, msg string, cause error) *guard.Rejection {
	r := &guard.Rejection{Code: code, Cause: cause}
	meta := info.GetMetadata()
	if m, ok := meta[metaMessage]; ok {
		r.Message = m
	} else if _, rest, found := strings.Cut(msg, string(code)+": "); found {
		r.Message = rest
	} else {
		r.Message = msg
	}
	if name, ok := meta[metaOp]; ok {
		if op, err := envelope.ParseOpCode(name); err == nil {
			r.Op = op
		}
	}
	return r
}

// Code returns the coded error carried by err, if any.
func Code(err error) (model.ErrorCode, bool) {
	var r *guard.Rejection
	if errors.As(err, &r) {
		return model.ErrorCode(r.Code), true
	}
	var ce *model.CodedError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}
