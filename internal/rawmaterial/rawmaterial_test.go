package rawmaterial

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureStore is an in-memory Store. A nil map entry stands for a NULL column.
type fixtureStore struct {
	mu           sync.Mutex
	coefficients map[int64]*float64
	losses       map[int64]*float64
	acquireErr   error
	lookupErr    error
	acquired     int
	closed       int
}

func newFixture() *fixtureStore {
	return &fixtureStore{
		coefficients: map[int64]*float64{},
		losses:       map[int64]*float64{},
	}
}

func ptr(v float64) *float64 { return &v }

func (f *fixtureStore) Acquire(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return fixtureSession{f}, nil
}

func (f *fixtureStore) counts() (acquired, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired, f.closed
}

type fixtureSession struct{ f *fixtureStore }

func (s fixtureSession) Coefficient(_ context.Context, id int64) (float64, error) {
	return s.get(s.f.coefficients, id)
}

func (s fixtureSession) LossFactor(_ context.Context, id int64) (float64, error) {
	return s.get(s.f.losses, id)
}

func (s fixtureSession) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.f.closed++
	return nil
}

func (s fixtureSession) get(m map[int64]*float64, id int64) (float64, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if s.f.lookupErr != nil {
		return 0, s.f.lookupErr
	}
	v, ok := m[id]
	if !ok {
		return 0, ErrNotFound
	}
	if v == nil {
		return 0, ErrNullValue
	}
	return *v, nil
}

func storeWith(coefficient, loss float64) *fixtureStore {
	f := newFixture()
	f.coefficients[1] = ptr(coefficient)
	f.losses[1] = ptr(loss)
	return f
}

func TestCalculate_PercentLossScenario(t *testing.T) {
	store := storeWith(2.0, 10)

	res, err := Compute(context.Background(), store, Input{
		ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 5, ParameterOne: 3, ParameterTwo: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, 24.0, res.PerUnit)
	assert.Equal(t, 120.0, res.TotalRaw)
	assert.InDelta(t, 132.0, res.TotalWithLoss, 1e-9)
	assert.Equal(t, int64(132), res.Amount)

	assert.Equal(t, int64(132), Calculate(context.Background(), store, 1, 1, 5, 3, 4))
}

func TestCalculate_FractionLossRoundsUp(t *testing.T) {
	store := storeWith(1.5, 0.2)

	res, err := Compute(context.Background(), store, Input{
		ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 1, ParameterOne: 1.25, ParameterTwo: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.75, res.PerUnit)
	assert.InDelta(t, 4.5, res.TotalWithLoss, 1e-9)
	assert.Equal(t, int64(5), res.Amount)

	assert.Equal(t, int64(9), Calculate(context.Background(), store, 1, 1, 1, 2.5, 2))
}

func TestCalculate_LossNormalizationIsEquivalent(t *testing.T) {
	asPercent := storeWith(2.0, 10)
	asFraction := storeWith(2.0, 0.10)

	for _, qty := range []int64{1, 3, 7, 250} {
		in := Input{ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: qty, ParameterOne: 1.3, ParameterTwo: 0.7}

		a, err := Compute(context.Background(), asPercent, in)
		require.NoError(t, err)
		b, err := Compute(context.Background(), asFraction, in)
		require.NoError(t, err)

		assert.Equal(t, a.LossFraction, b.LossFraction)
		assert.Equal(t, a.Amount, b.Amount, "quantity %d", qty)
	}
}

func TestNormalizeLoss(t *testing.T) {
	cases := []struct {
		stored float64
		want   float64
	}{
		{0, 0},
		{0.1, 0.1},
		{1, 1},
		{1.5, 0.015},
		{10, 0.1},
		{100, 1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, NormalizeLoss(tc.stored), 1e-12, "stored %v", tc.stored)
	}
}

func TestCalculate_LossOfOneIsFullUplift(t *testing.T) {
	store := storeWith(1, 1)
	assert.Equal(t, int64(20), Calculate(context.Background(), store, 1, 1, 1, 2, 5))
}

func TestCalculate_ZeroLoss(t *testing.T) {
	store := storeWith(0.5, 0)
	assert.Equal(t, int64(3), Calculate(context.Background(), store, 1, 1, 1, 2.1, 2.5))
}

func TestCalculate_InvalidInputNeverTouchesStore(t *testing.T) {
	cases := []struct {
		name                string
		pt, mt, qty, p1, p2 any
	}{
		{"zero quantity", 1, 1, 0, 3.0, 4.0},
		{"negative quantity", 1, 1, -3, 3.0, 4.0},
		{"boolean product type", true, 1, 5, 3.0, 4.0},
		{"boolean material type", 1, false, 5, 3.0, 4.0},
		{"boolean quantity", 1, 1, true, 3.0, 4.0},
		{"boolean parameter", 1, 1, 5, true, 4.0},
		{"zero parameter one", 1, 1, 5, 0.0, 4.0},
		{"negative parameter two", 1, 1, 5, 3.0, -1.5},
		{"NaN parameter one", 1, 1, 5, math.NaN(), 4.0},
		{"infinite parameter one", 1, 1, 5, math.Inf(1), 4.0},
		{"infinite string parameter", 1, 1, 5, "inf", 4.0},
		{"text parameter", 1, 1, 5, "three", 4.0},
		{"missing product type", nil, 1, 5, 3.0, 4.0},
		{"zero material type", 1, 0, 5, 3.0, 4.0},
		{"fractional quantity below one", 1, 1, 0.5, 3.0, 4.0},
		{"decimal string quantity", 1, 1, "5.0", 3.0, 4.0},
		{"object id", map[string]any{"id": 1}, 1, 5, 3.0, 4.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := storeWith(2, 10)
			got := Calculate(context.Background(), store, tc.pt, tc.mt, tc.qty, tc.p1, tc.p2)
			assert.Equal(t, Failed, got)

			acquired, _ := store.counts()
			assert.Zero(t, acquired, "store must not be consulted for invalid input")
		})
	}
}

func TestCompute_ReferenceFailures(t *testing.T) {
	in := Input{ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 5, ParameterOne: 3, ParameterTwo: 4}

	cases := []struct {
		name  string
		setup func(f *fixtureStore)
		want  error
	}{
		{"missing product type", func(f *fixtureStore) { delete(f.coefficients, 1) }, ErrReferenceMissing},
		{"missing material type", func(f *fixtureStore) { delete(f.losses, 1) }, ErrReferenceMissing},
		{"null coefficient", func(f *fixtureStore) { f.coefficients[1] = nil }, ErrReferenceCorrupt},
		{"null loss", func(f *fixtureStore) { f.losses[1] = nil }, ErrReferenceCorrupt},
		{"zero coefficient", func(f *fixtureStore) { f.coefficients[1] = ptr(0) }, ErrReferenceCorrupt},
		{"negative coefficient", func(f *fixtureStore) { f.coefficients[1] = ptr(-2) }, ErrReferenceCorrupt},
		{"NaN coefficient", func(f *fixtureStore) { f.coefficients[1] = ptr(math.NaN()) }, ErrReferenceCorrupt},
		{"infinite loss", func(f *fixtureStore) { f.losses[1] = ptr(math.Inf(1)) }, ErrReferenceCorrupt},
		{"negative loss", func(f *fixtureStore) { f.losses[1] = ptr(-0.1) }, ErrReferenceCorrupt},
		{"lookup failure", func(f *fixtureStore) { f.lookupErr = errors.New("disk I/O error") }, ErrStoreUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := storeWith(2, 10)
			tc.setup(store)

			res, err := Compute(context.Background(), store, in)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, Failed, Amount(res, err))

			acquired, closed := store.counts()
			assert.Equal(t, 1, acquired)
			assert.Equal(t, 1, closed, "session must be released on failure")
		})
	}
}

func TestCompute_StoreUnavailable(t *testing.T) {
	store := storeWith(2, 10)
	store.acquireErr = errors.New("unable to open database file")

	_, err := Compute(context.Background(), store, Input{
		ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 1, ParameterOne: 1, ParameterTwo: 1,
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	assert.Equal(t, Failed, Calculate(context.Background(), nil, 1, 1, 1, 1, 1))
}

func TestCompute_ReleasesSessionOnSuccess(t *testing.T) {
	store := storeWith(2, 10)
	_, err := Compute(context.Background(), store, Input{
		ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 1, ParameterOne: 1, ParameterTwo: 1,
	})
	require.NoError(t, err)

	acquired, closed := store.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, closed)
}

func TestCompute_Overflow(t *testing.T) {
	store := storeWith(1, 0)

	_, err := Compute(context.Background(), store, Input{
		ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 10, ParameterOne: 1e300, ParameterTwo: 1e300,
	})
	require.ErrorIs(t, err, ErrOverflow)

	_, err = Compute(context.Background(), store, Input{
		ProductTypeID: 1, MaterialTypeID: 1, ProductQuantity: 1, ParameterOne: 1e10, ParameterTwo: 1e10,
	})
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCalculate_MatchesFormula(t *testing.T) {
	store := newFixture()
	store.coefficients[1] = ptr(3.5)
	store.coefficients[2] = ptr(0.45)
	store.losses[1] = ptr(0.008)
	store.losses[2] = ptr(12.5)

	for pt := int64(1); pt <= 2; pt++ {
		for mt := int64(1); mt <= 2; mt++ {
			for _, qty := range []int64{1, 4, 19} {
				p1, p2 := 1.7, 0.35
				coef := *store.coefficients[pt]
				loss := NormalizeLoss(*store.losses[mt])
				want := int64(math.Ceil(p1 * p2 * coef * float64(qty) * (1 + loss)))

				got := Calculate(context.Background(), store, pt, mt, qty, p1, p2)
				assert.Equal(t, want, got, "pt=%d mt=%d qty=%d", pt, mt, qty)
				assert.GreaterOrEqual(t, got, int64(0))
			}
		}
	}
}

func TestCalculate_IdempotentAndConcurrent(t *testing.T) {
	store := storeWith(2.3, 0.7)
	want := Calculate(context.Background(), store, 1, 1, 11, 1.2, 3.4)
	require.NotEqual(t, Failed, want)

	var wg sync.WaitGroup
	results := make([]int64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Calculate(context.Background(), store, 1, 1, 11, 1.2, 3.4)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, want, got, "call %d", i)
	}
	acquired, closed := store.counts()
	assert.Equal(t, acquired, closed)
}
