package rawmaterial

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Failed is the amount reported for every failed calculation.
const Failed int64 = -1

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrReferenceMissing = errors.New("reference data missing")
	ErrReferenceCorrupt = errors.New("reference data corrupt")
	ErrStoreUnavailable = errors.New("reference store unavailable")
	ErrOverflow         = errors.New("numeric overflow")
)

// Input holds validated calculation inputs.
type Input struct {
	ProductTypeID   int64
	MaterialTypeID  int64
	ProductQuantity int64
	ParameterOne    float64
	ParameterTwo    float64
}

// Validate reports whether every input is strictly positive and finite.
func (in Input) Validate() error {
	if in.ProductTypeID <= 0 {
		return fmt.Errorf("%w: product_type_id must be greater than 0", ErrInvalidInput)
	}
	if in.MaterialTypeID <= 0 {
		return fmt.Errorf("%w: material_type_id must be greater than 0", ErrInvalidInput)
	}
	if in.ProductQuantity <= 0 {
		return fmt.Errorf("%w: product_quantity must be greater than 0", ErrInvalidInput)
	}
	if !positiveFinite(in.ParameterOne) {
		return fmt.Errorf("%w: parameter_one must be a finite number greater than 0", ErrInvalidInput)
	}
	if !positiveFinite(in.ParameterTwo) {
		return fmt.Errorf("%w: parameter_two must be a finite number greater than 0", ErrInvalidInput)
	}
	return nil
}

// Result contains the intermediate values and the final amount of a successful calculation.
type Result struct {
	Coefficient   float64
	LossFactor    float64
	LossFraction  float64
	PerUnit       float64
	TotalRaw      float64
	TotalWithLoss float64
	Amount        int64
}

// Calculate coerces raw inputs, runs the calculation and returns the amount of
// raw material, or Failed. It never returns an error.
func Calculate(ctx context.Context, store Store, productTypeID, materialTypeID, productQuantity, parameterOne, parameterTwo any) int64 {
	in, err := Coerce(productTypeID, materialTypeID, productQuantity, parameterOne, parameterTwo)
	if err != nil {
		return Failed
	}
	return Amount(Compute(ctx, store, in))
}

// Amount collapses a Compute outcome into the external integer contract.
func Amount(res Result, err error) int64 {
	if err != nil {
		return Failed
	}
	return res.Amount
}

// Compute validates in, reads the two reference values through one store
// session and returns the loss-adjusted amount rounded up.
func Compute(ctx context.Context, store Store, in Input) (res Result, err error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if store == nil {
		return Result{}, fmt.Errorf("%w: no store configured", ErrStoreUnavailable)
	}

	session, err := store.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer session.Close()

	coefficient, err := session.Coefficient(ctx, in.ProductTypeID)
	if err != nil {
		return Result{}, lookupError("coefficient", in.ProductTypeID, err)
	}
	if !positiveFinite(coefficient) {
		return Result{}, fmt.Errorf("%w: coefficient %v for product type %d", ErrReferenceCorrupt, coefficient, in.ProductTypeID)
	}

	loss, err := session.LossFactor(ctx, in.MaterialTypeID)
	if err != nil {
		return Result{}, lookupError("loss factor", in.MaterialTypeID, err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) || loss < 0 {
		return Result{}, fmt.Errorf("%w: loss factor %v for material type %d", ErrReferenceCorrupt, loss, in.MaterialTypeID)
	}

	res.Coefficient = coefficient
	res.LossFactor = loss
	res.LossFraction = NormalizeLoss(loss)
	res.PerUnit = in.ParameterOne * in.ParameterTwo * coefficient
	res.TotalRaw = res.PerUnit * float64(in.ProductQuantity)
	res.TotalWithLoss = res.TotalRaw * (1 + res.LossFraction)

	if math.IsNaN(res.TotalWithLoss) || math.IsInf(res.TotalWithLoss, 0) || res.TotalWithLoss < 0 {
		return Result{}, fmt.Errorf("%w: total %v", ErrOverflow, res.TotalWithLoss)
	}

	rounded := math.Ceil(res.TotalWithLoss)
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if rounded >= math.MaxInt64 {
		return Result{}, fmt.Errorf("%w: amount %v does not fit in int64", ErrOverflow, rounded)
	}
	res.Amount = int64(rounded)

	return res, nil
}

// NormalizeLoss converts a stored loss factor to a fraction. Values above 1
// are percentages; anything else is already a fraction.
func NormalizeLoss(stored float64) float64 {
	if stored > 1 {
		return stored / 100.0
	}
	return stored
}

func lookupError(what string, id int64, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %s for id %d", ErrReferenceMissing, what, id)
	case errors.Is(err, ErrNullValue):
		return fmt.Errorf("%w: %s for id %d is NULL", ErrReferenceCorrupt, what, id)
	default:
		return fmt.Errorf("%w: read %s for id %d: %v", ErrStoreUnavailable, what, id, err)
	}
}

func positiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
