package handler

import (
	"context"
	"errors"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/core/service"
)

const InventoryServiceName = "inventory.v1.InventoryService"

// InventoryServer is served under inventory.v1.InventoryService. Messages are
// google.protobuf.Struct so clients need no generated stubs.
type InventoryServer interface {
	Sell(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetInventory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var InventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Sell", Handler: unaryHandler("Sell", InventoryServer.Sell)},
		{MethodName: "GetInventory", Handler: unaryHandler("GetInventory", InventoryServer.GetInventory)},
		{MethodName: "Simulate", Handler: unaryHandler("Simulate", InventoryServer.Simulate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.proto",
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&InventoryServiceDesc, srv)
}

// FullMethod returns the invoke path of an InventoryService method.
func FullMethod(method string) string {
	return "/" + InventoryServiceName + "/" + method
}

type unaryMethod func(InventoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(name),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(InventoryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	sellService *service.SellService
}

func NewGRPCHandler(sellService *service.SellService) *GRPCHandler {
	return &GRPCHandler{sellService: sellService}
}

func (h *GRPCHandler) Sell(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := inventoryID(req)
	if err != nil {
		return nil, err
	}

	res := h.sellService.Sell(ctx, 0, id)
	return structpb.NewStruct(sellFields(res))
}

func (h *GRPCHandler) GetInventory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := inventoryID(req)
	if err != nil {
		return nil, err
	}

	inv, err := h.sellService.GetInventory(ctx, id)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	if inv == nil {
		return nil, status.Errorf(codes.NotFound, "inventory %d not found", id)
	}

	return structpb.NewStruct(inventoryFields(inv))
}

func (h *GRPCHandler) Simulate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := inventoryID(req)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	attempts, _, err := intField(fields, "attempts")
	if err != nil {
		return nil, err
	}
	if attempts <= 0 || attempts > maxSimulateAttempts {
		return nil, status.Errorf(codes.InvalidArgument, "attempts must be in [1, %d]", maxSimulateAttempts)
	}
	pace, err := millisField(fields, "pace_ms")
	if err != nil {
		return nil, err
	}
	timeout, err := millisField(fields, "attempt_timeout_ms")
	if err != nil {
		return nil, err
	}

	report, err := h.sellService.Simulate(ctx, domain.SimulationConfig{
		InventoryID:    id,
		Attempts:       int(attempts),
		Pace:           pace,
		AttemptTimeout: timeout,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidConfig) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	results := make([]interface{}, 0, len(report.Results))
	for _, res := range report.Results {
		results = append(results, sellFields(res))
	}

	var final interface{}
	if report.Final != nil {
		final = inventoryFields(report.Final)
	}

	return structpb.NewStruct(map[string]interface{}{
		"committed": report.Committed,
		"attempts":  results,
		"final":     final,
	})
}

func inventoryID(req *structpb.Struct) (int64, error) {
	id, ok, err := intField(req.GetFields(), "inventory_id")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "inventory_id is required")
	}
	if id <= 0 {
		return 0, status.Error(codes.InvalidArgument, "inventory_id must be positive")
	}
	return id, nil
}

// intField reads an optional whole number. Struct numbers are doubles, so
// fractions and values outside int64 are rejected instead of truncated.
func intField(fields map[string]*structpb.Value, name string) (int64, bool, error) {
	v, ok := fields[name]
	if !ok {
		return 0, false, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := n.NumberValue
	if math.IsNaN(f) || math.Trunc(f) != f {
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be a whole number", name)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, true, status.Errorf(codes.InvalidArgument, "%s is out of range", name)
	}
	return int64(f), true, nil
}

func millisField(fields map[string]*structpb.Value, name string) (time.Duration, error) {
	ms, _, err := intField(fields, name)
	if err != nil {
		return 0, err
	}
	if ms > math.MaxInt64/int64(time.Millisecond) || ms < math.MinInt64/int64(time.Millisecond) {
		return 0, status.Errorf(codes.InvalidArgument, "%s is out of range", name)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func sellFields(res domain.AttemptResult) map[string]interface{} {
	fields := map[string]interface{}{
		"success":    res.Outcome.Sold(),
		"outcome":    string(res.Outcome),
		"message":    outcomeMessage(res.Outcome),
		"attempt":    res.Index,
		"attempt_id": res.AttemptID,
	}
	if res.Observed != nil {
		fields["observed"] = inventoryFields(res.Observed)
	}
	return fields
}

func inventoryFields(inv *domain.Inventory) map[string]interface{} {
	return map[string]interface{}{
		"id":      inv.ID,
		"stock":   inv.Stock,
		"version": inv.Version,
	}
}
