package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/covers-forecast/internal/models"
	"github.com/miradorstack/covers-forecast/internal/utils"
)

// ForecastService is the inbound contract served over gRPC and HTTP.
type ForecastService interface {
	ForecastOne(ctx context.Context, locationID, serviceDate, servicePeriod string) (models.Prediction, error)
	ForecastBatch(ctx context.Context, locationID string, dates []string, servicePeriod string) ([]models.BatchOutcome, error)
	Staffing(locationID string, covers int) (models.StaffPlan, error)
	Context(serviceDate string) (models.ContextSnapshot, error)
	ModelTrained() bool
}

// ForecastRequestBody is the single-date request shape.
type ForecastRequestBody struct {
	LocationID    string `json:"location_id"`
	ServiceDate   string `json:"service_date"`
	ServicePeriod string `json:"service_period"`
}

// BatchRequestBody is the multi-date request shape.
type BatchRequestBody struct {
	LocationID    string   `json:"location_id"`
	Dates         []string `json:"dates"`
	ServicePeriod string   `json:"service_period"`
}

// StaffingRequestBody asks for a staff plan at a covers level.
type StaffingRequestBody struct {
	LocationID string `json:"location_id"`
	Covers     int    `json:"covers"`
}

// BatchResponse wraps batch outcomes.
type BatchResponse struct {
	Outcomes  []models.BatchOutcome `json:"outcomes"`
	Completed int                   `json:"completed"`
	Failed    int                   `json:"failed"`
}

// NewBatchResponse tallies outcome statuses.
func NewBatchResponse(outcomes []models.BatchOutcome) BatchResponse {
	resp := BatchResponse{Outcomes: outcomes}
	if resp.Outcomes == nil {
		resp.Outcomes = []models.BatchOutcome{}
	}
	for _, out := range outcomes {
		switch out.Status {
		case models.BatchCompleted:
			resp.Completed++
		case models.BatchFailed:
			resp.Failed++
		}
	}
	return resp
}

// GRPCService adapts ForecastService to the Struct-typed gRPC surface.
type GRPCService struct {
	service ForecastService
	logger  *slog.Logger
}

// NewGRPCService wires the gRPC adapter.
func NewGRPCService(service ForecastService, logger *slog.Logger) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{service: service, logger: logger}
}

// Forecast handles covers.v1.ForecastEngine/Forecast.
func (g *GRPCService) Forecast(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body ForecastRequestBody
	if err := FromStruct(in, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	prediction, err := g.service.ForecastOne(ctx, body.LocationID, body.ServiceDate, body.ServicePeriod)
	if err != nil {
		return nil, g.toStatus("Forecast", err)
	}
	return g.reply(prediction)
}

// ForecastBatch handles covers.v1.ForecastEngine/ForecastBatch.
func (g *GRPCService) ForecastBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body BatchRequestBody
	if err := FromStruct(in, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	outcomes, err := g.service.ForecastBatch(ctx, body.LocationID, body.Dates, body.ServicePeriod)
	if err != nil {
		return nil, g.toStatus("ForecastBatch", err)
	}
	return g.reply(NewBatchResponse(outcomes))
}

// Staffing handles covers.v1.ForecastEngine/Staffing.
func (g *GRPCService) Staffing(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body StaffingRequestBody
	if err := FromStruct(in, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	plan, err := g.service.Staffing(body.LocationID, body.Covers)
	if err != nil {
		return nil, g.toStatus("Staffing", err)
	}
	return g.reply(plan)
}

func (g *GRPCService) reply(v interface{}) (*structpb.Struct, error) {
	out, err := ToStruct(v)
	if err != nil {
		g.logger.Error("encode response", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func (g *GRPCService) toStatus(method string, err error) error {
	code := StatusCode(err)
	if code == codes.Internal {
		g.logger.Error("grpc call failed", slog.String("method", method), slog.String("op", utils.OpOf(err)), slog.Any("error", err))
	}
	return status.Error(code, err.Error())
}

// StatusCode maps domain errors onto gRPC codes.
func StatusCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ToStruct converts a JSON-tagged value into a protobuf Struct.
func ToStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return structpb.NewStruct(fields)
}

// FromStruct decodes a protobuf Struct into a JSON-tagged destination.
func FromStruct(in *structpb.Struct, dst interface{}) error {
	if in == nil {
		return fmt.Errorf("request is nil")
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
