package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/hangout/internal/gateway"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// PresenceServiceName is the fully qualified gRPC service name.
const PresenceServiceName = "hangout.presence.v1.Presence"

// SessionStream is the server side of a Presence/Session stream. Each message
// is an envelope object {"event": ..., "data": ...}.
type SessionStream = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]

// SessionClient is the client side of a Presence/Session stream.
type SessionClient = grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]

// PresenceServer is the server API for the Presence service.
type PresenceServer interface {
	Session(stream SessionStream) error
}

func presenceSessionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PresenceServer).Session(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// PresenceServiceDesc describes the Presence service for registration.
var PresenceServiceDesc = grpc.ServiceDesc{
	ServiceName: PresenceServiceName,
	HandlerType: (*PresenceServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       presenceSessionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "hangout/presence/v1/presence.proto",
}

// RegisterPresenceServer registers srv on s.
func RegisterPresenceServer(s grpc.ServiceRegistrar, srv PresenceServer) {
	s.RegisterService(&PresenceServiceDesc, srv)
}

// OpenSession starts a Presence/Session stream on cc.
func OpenSession(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (SessionClient, error) {
	stream, err := cc.NewStream(ctx, &PresenceServiceDesc.Streams[0], "/"+PresenceServiceName+"/Session", opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}

// EnvelopeToStruct converts an outbound envelope to its wire message.
func EnvelopeToStruct(env protocol.Envelope) (*structpb.Struct, error) {
	raw, err := protocol.Encode(env)
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("converting %s to struct: %w", env.Event, err)
	}
	return msg, nil
}

// StructToInbound converts a client wire message to an inbound event.
func StructToInbound(msg *structpb.Struct) (protocol.Inbound, error) {
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return protocol.Inbound{}, fmt.Errorf("converting struct to JSON: %w", err)
	}
	return protocol.Decode(raw)
}

// PresenceService exposes the presence engine as a bidirectional gRPC stream.
// One stream is one connection.
type PresenceService struct {
	engine *Engine
	logger *zap.Logger
}

// NewPresenceService creates a PresenceService.
//
// Precondition: engine and logger must be non-nil.
func NewPresenceService(engine *Engine, logger *zap.Logger) *PresenceService {
	return &PresenceService{engine: engine, logger: logger}
}

// Session handles one connection until the client closes the stream or the
// connection is dropped for falling behind.
func (s *PresenceService) Session(stream SessionStream) error {
	ctx := stream.Context()
	connID := "grpc-" + uuid.NewString()

	client, err := s.engine.Connect(connID)
	if err != nil {
		return status.Errorf(codes.Internal, "registering connection: %v", err)
	}
	defer s.engine.Disconnect(context.WithoutCancel(ctx), connID)
	s.logger.Info("grpc session opened", zap.String("conn_id", connID))

	recvDone := make(chan error, 1)
	go func() {
		recvDone <- s.commandLoop(ctx, connID, stream)
		s.engine.Disconnect(context.WithoutCancel(ctx), connID)
	}()

	if err := s.forwardEvents(client, stream); err != nil {
		return err
	}

	// The event channel closed: either the command loop ended or the
	// gateway dropped the connection.
	select {
	case err := <-recvDone:
		if err != nil && !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
			return err
		}
		s.logger.Info("grpc session closed", zap.String("conn_id", connID))
		return nil
	default:
		return status.Error(codes.ResourceExhausted, "outbound event queue overflowed")
	}
}

// commandLoop dispatches client messages until the stream ends.
func (s *PresenceService) commandLoop(ctx context.Context, connID string, stream SessionStream) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		in, err := StructToInbound(msg)
		if err != nil {
			s.logger.Debug("dropping malformed message", zap.String("conn_id", connID), zap.Error(err))
			continue
		}
		s.engine.Dispatch(ctx, connID, in)
	}
}

// forwardEvents sends queued envelopes until the queue is closed.
func (s *PresenceService) forwardEvents(client *gateway.Client, stream SessionStream) error {
	for env := range client.Events() {
		msg, err := EnvelopeToStruct(env)
		if err != nil {
			s.logger.Error("encoding event", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		if err := stream.Send(msg); err != nil {
			s.logger.Debug("forward event send failed", zap.String("conn_id", client.ConnID()), zap.Error(err))
			return err
		}
	}
	return nil
}
