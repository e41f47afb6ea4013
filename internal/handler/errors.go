package handler

import (
	"errors"
	"sort"

	"github.com/fekuna/omnipos-product-dal/internal/category"
	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/product"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC status errors. Write violations are
// attached as BadRequest field violations.
func toStatus(err error) error {
	var stackErr *dal.WriteStackError
	switch {
	case errors.As(err, &stackErr):
		st := status.New(codes.InvalidArgument, stackErr.Error())
		violations := make([]*errdetails.BadRequest_FieldViolation, 0, len(stackErr.Violations))
		for _, v := range stackErr.Violations {
			violations = append(violations, &errdetails.BadRequest_FieldViolation{
				Field:       v.Pointer,
				Description: v.Code + ": " + v.Message,
			})
		}
		sort.SliceStable(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
		if detailed, derr := st.WithDetails(&errdetails.BadRequest{FieldViolations: violations}); derr == nil {
			return detailed.Err()
		}
		return st.Err()
	case errors.Is(err, dal.ErrUnknownDefinition),
		errors.Is(err, dal.ErrUnknownField),
		errors.Is(err, dal.ErrInvalidCriteria),
		errors.Is(err, dal.ErrUnsupportedProjection),
		errors.Is(err, product.ErrNestedVariant),
		errors.Is(err, category.ErrCategoryCycle):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, product.ErrProductNotFound), errors.Is(err, category.ErrCategoryNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, product.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
