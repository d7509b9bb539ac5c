package grpcarchive

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tonkeeper/2fa-extension/journal"
)

// Server exposes a journal.Archive over the archive service.
type Server struct {
	UnimplementedArchiveServer
	Archive journal.Archive
}

func (s *Server) Put(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Archive == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing archive")
	}
	b := in.GetValue()
	want, err := journal.CIDOf(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.Archive.Put(b)
	if err != nil {
		return nil, toStatus(err)
	}
	if !id.Equals(want) {
		return nil, toStatus(journal.ErrCIDMismatch)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Archive == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing archive")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, toStatus(journal.ErrInvalidCID)
	}
	b, err := s.Archive.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := journal.Verify(id, b); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Archive == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing archive")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, toStatus(journal.ErrInvalidCID)
	}
	return wrapperspb.Bool(s.Archive.Has(id)), nil
}
