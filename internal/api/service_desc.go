package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ForecastEngineServiceName is the fully-qualified gRPC service name.
const ForecastEngineServiceName = "covers.v1.ForecastEngine"

// ForecastEngineServer is the server API for covers.v1.ForecastEngine. Every
// method exchanges google.protobuf.Struct payloads.
type ForecastEngineServer interface {
	Forecast(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForecastBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Staffing(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterForecastEngineServer attaches srv to a gRPC service registrar.
func RegisterForecastEngineServer(s grpc.ServiceRegistrar, srv ForecastEngineServer) {
	s.RegisterService(&forecastEngineServiceDesc, srv)
}

var forecastEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ForecastEngineServiceName,
	HandlerType: (*ForecastEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Forecast", Handler: unaryHandler("Forecast", ForecastEngineServer.Forecast)},
		{MethodName: "ForecastBatch", Handler: unaryHandler("ForecastBatch", ForecastEngineServer.ForecastBatch)},
		{MethodName: "Staffing", Handler: unaryHandler("Staffing", ForecastEngineServer.Staffing)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "covers/v1/forecast.proto",
}

type structMethod func(ForecastEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structMethod) grpc.MethodHandler {
	fullMethod := "/" + ForecastEngineServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(ForecastEngineServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(server, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
