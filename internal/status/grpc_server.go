package status

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/runner"
)

const (
	// ServiceName is the gRPC name of the progress service
	ServiceName = "xpsweep.v1.SweepStatus"
	// GetProgressMethod is the full method name of GetProgress
	GetProgressMethod = "/" + ServiceName + "/GetProgress"
)

// SweepStatusServer answers progress queries for a running sweep
type SweepStatusServer interface {
	GetProgress(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// GRPCServer serves the standard health service and SweepStatus
type GRPCServer struct {
	progress ProgressSource
	health   *health.Server
}

func NewGRPCServer(progress ProgressSource) *GRPCServer {
	return &GRPCServer{
		progress: progress,
		health:   health.NewServer(),
	}
}

// Register attaches both services to reg
func (s *GRPCServer) Register(reg grpc.ServiceRegistrar) {
	reg.RegisterService(&sweepStatusServiceDesc, s)
	healthpb.RegisterHealthServer(reg, s.health)
}

// SetServing flips the health status of the server and of ServiceName
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *GRPCServer) GetProgress(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.progress == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "no sweep attached")
	}
	out, err := progressStruct(s.progress.Progress())
	if err != nil {
		return nil, grpcstatus.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func progressStruct(p runner.Progress) (*structpb.Struct, error) {
	started := ""
	if !p.StartedAt.IsZero() {
		started = p.StartedAt.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(map[string]any{
		"sweep_id":    p.SweepID,
		"stage":       p.Stage,
		"stage_total": p.StageTotal,
		"stage_done":  p.StageDone,
		"total":       p.Total,
		"done":        p.Done,
		"succeeded":   p.Succeeded,
		"failed":      p.Failed,
		"skipped":     p.Skipped,
		"running":     p.Running,
		"started_at":  started,
	})
}

// GetProgress calls SweepStatus/GetProgress over cc
func GetProgress(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, GetProgressMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func getProgressHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SweepStatusServer).GetProgress(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetProgressMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SweepStatusServer).GetProgress(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var sweepStatusServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SweepStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetProgress",
			Handler:    getProgressHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xpsweep/v1/status.proto",
}
