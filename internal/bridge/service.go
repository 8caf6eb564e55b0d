// Package bridge exposes a RepositoryManager over gRPC so the client process
// can use the database owned by the bridge process.
//
// The service is described by hand instead of generated code: every channel
// is a unary method whose request and response are google.protobuf.BytesValue
// messages carrying JSON. Calls other than Ping must present an access token
// in the "access_token" metadata key.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/almacen/internal/common"
	"github.com/dmitrijs2005/almacen/internal/models"
	"github.com/dmitrijs2005/almacen/internal/repositories/memories"
	"github.com/dmitrijs2005/almacen/internal/repositories/repomanager"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "almacen.bridge.v1.Bridge"

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

type channel func(ctx context.Context, m repomanager.RepositoryManager, payload []byte) (any, error)

func decode[T any](payload []byte) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode request: %v", common.ErrValidation, err)
	}
	return v, nil
}

var channels = map[string]channel{
	MethodSaveMemory: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		mem, err := decode[models.Memory](p)
		if err != nil {
			return nil, err
		}
		return empty{}, m.Memories().Save(ctx, &mem)
	},
	MethodGetMemory: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[idRequest](p)
		if err != nil {
			return nil, err
		}
		return m.Memories().Get(ctx, req.ID)
	},
	MethodDeleteMemory: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[idRequest](p)
		if err != nil {
			return nil, err
		}
		return empty{}, m.Memories().Delete(ctx, req.ID)
	},
	MethodListMemories: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[pageRequest](p)
		if err != nil {
			return nil, err
		}
		return m.Memories().List(ctx, req.Limit, req.Offset)
	},
	MethodCountMemories: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		n, err := m.Memories().Count(ctx)
		return countResponse{Count: n}, err
	},
	MethodAllMemories: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		return memories.All(ctx, m.Memories())
	},
	MethodAppendAudit: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		e, err := decode[models.AuditEntry](p)
		if err != nil {
			return nil, err
		}
		return empty{}, m.Audit().Append(ctx, &e)
	},
	MethodLastAudit: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		return m.Audit().Last(ctx)
	},
	MethodQueryAudit: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[queryAuditRequest](p)
		if err != nil {
			return nil, err
		}
		entries, total, err := m.Audit().Query(ctx, req.Filter, req.Limit, req.Offset)
		return queryAuditResponse{Entries: entries, Total: total}, err
	},
	MethodAllAudit: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		return m.Audit().All(ctx)
	},
	MethodGetSetting: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[settingRequest](p)
		if err != nil {
			return nil, err
		}
		v, err := m.Settings().Get(ctx, req.Key)
		return settingResponse{Value: v}, err
	},
	MethodSetSetting: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[settingRequest](p)
		if err != nil {
			return nil, err
		}
		return empty{}, m.Settings().Set(ctx, req.Key, req.Value)
	},
	MethodDeleteSetting: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		req, err := decode[settingRequest](p)
		if err != nil {
			return nil, err
		}
		return empty{}, m.Settings().Delete(ctx, req.Key)
	},
	MethodListSettings: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		return m.Settings().List(ctx)
	},
	MethodClearSettings: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		return empty{}, m.Settings().Clear(ctx)
	},
	MethodReplaceAll: func(ctx context.Context, m repomanager.RepositoryManager, p []byte) (any, error) {
		snap, err := decode[snapshotMessage](p)
		if err != nil {
			return nil, err
		}
		return empty{}, m.ReplaceAll(ctx, &models.Snapshot{
			Memories: snap.Memories,
			AuditLog: snap.AuditLog,
			Settings: snap.Settings,
		})
	},
	MethodPing: func(ctx context.Context, m repomanager.RepositoryManager, _ []byte) (any, error) {
		if err := m.Ping(ctx); err != nil {
			return nil, err
		}
		return pingResponse{Status: "OK", Backend: m.Name()}, nil
	},
}

// serviceDesc describes the bridge service for grpc.Server.RegisterService.
func (s *Server) serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "almacen/bridge/v1/bridge.proto",
	}
	for name, ch := range channels {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    s.methodHandler(name, ch),
		})
	}
	return desc
}

func (s *Server) methodHandler(name string, ch channel) grpc.MethodHandler {
	return func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req any) (any, error) {
			out, err := ch(ctx, s.manager, req.(*wrapperspb.BytesValue).GetValue())
			if err != nil {
				return nil, toStatus(err)
			}
			b, err := json.Marshal(out)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return wrapperspb.Bytes(b), nil
		}

		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: s, FullMethod: fullMethod(name)}
		return interceptor(ctx, in, info, handler)
	}
}
