package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/tonkeeper/2fa-extension/model"
	"github.com/tonkeeper/2fa-extension/wallet"
)

// Backend is the subset of the guard service exposed over gRPC.
type Backend interface {
	Install(ctx context.Context, owner string, payload []byte, origin wallet.Origin) (*model.InstallResult, error)
	Submit(ctx context.Context, owner string, raw []byte) (*model.SubmitResult, error)
	SubmitRelayed(ctx context.Context, owner string, raw []byte, origin wallet.Origin) (*model.SubmitResult, error)
	Status(owner string) (*model.GuardStatus, error)
	Counter(owner string) (uint64, error)
	EstimateFee(q model.FeeQuery) (*model.FeeEstimate, error)
	History(owner string) ([]model.HistoryEntry, error)
	ExportHistory(w io.Writer, owner string) error
}

// Server adapts a Backend to GuardServer.
type Server struct {
	UnimplementedGuardServer
	Backend Backend
}

var _ GuardServer = (*Server)(nil)

func (s *Server) Install(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	var req InstallRequest
	if err := decodeWire(in.GetValue(), &req); err != nil {
		return nil, toStatus(model.NewError(model.ErrInvalidRequest, err.Error()))
	}
	res, err := s.Backend.Install(ctx, req.Owner, req.Payload, req.Origin)
	if err != nil {
		return nil, toStatus(err)
	}
	return jsonReply(res)
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	var req SubmitRequest
	if err := decodeWire(in.GetValue(), &req); err != nil {
		return nil, toStatus(model.NewError(model.ErrInvalidRequest, err.Error()))
	}
	var (
		res *model.SubmitResult
		err error
	)
	if req.Origin != nil {
		res, err = s.Backend.SubmitRelayed(ctx, req.Owner, req.Envelope, *req.Origin)
	} else {
		res, err = s.Backend.Submit(ctx, req.Owner, req.Envelope)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return jsonReply(res)
}

func (s *Server) Status(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	st, err := s.Backend.Status(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return jsonReply(st)
}

func (s *Server) Counter(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	n, err := s.Backend.Counter(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(n), nil
}

func (s *Server) EstimateFee(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	var q model.FeeQuery
	if err := json.Unmarshal([]byte(in.GetValue()), &q); err != nil {
		return nil, toStatus(model.NewError(model.ErrInvalidRequest, "fee query: "+err.Error()))
	}
	est, err := s.Backend.EstimateFee(q)
	if err != nil {
		return nil, toStatus(err)
	}
	return jsonReply(est)
}

func (s *Server) History(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	hist, err := s.Backend.History(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return jsonReply(hist)
}

func (s *Server) Export(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	var buf bytes.Buffer
	if err := s.Backend.ExportHistory(&buf, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(buf.Bytes()), nil
}

func jsonReply(v any) (*wrapperspb.StringValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(string(b)), nil
}

// LoggingInterceptor logs every call on l: failures at NOTICE, successes at
// DEBUG.
func LoggingInterceptor(l *logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			l.Noticef("%s failed after %v: %v", info.FullMethod, time.Since(start), err)
		} else {
			l.Debugf("%s ok in %v", info.FullMethod, time.Since(start))
		}
		return resp, err
	}
}
