package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
			yPred: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
			want:  0,
		},
		{
			name:  "simple case",
			yTrue: mat.NewVecDense(4, []float64{1, 2, 3, 4}),
			yPred: mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:  0.25,
		},
		{
			name:  "larger errors",
			yTrue: mat.NewVecDense(3, []float64{10, 20, 30}),
			yPred: mat.NewVecDense(3, []float64{12, 18, 33}),
			want:  17.0 / 3.0,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1, 2, 3}),
			yPred:   mat.NewVecDense(2, []float64{1, 2}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestMSEMatrixRequiresColumn(t *testing.T) {
	got, err := MSEMatrix(
		mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
		mat.NewDense(4, 1, []float64{1.5, 2.5, 2.5, 3.5}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-10)

	_, err = MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	assert.Error(t, err)
}

func TestRMSEAndMAE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{12.1, 14.3, 9.8, 17.0})
	yPred := mat.NewVecDense(4, []float64{13.1, 13.3, 10.8, 16.0})

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rmse, 1e-10)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mae, 1e-10)

	rm, err := RMSEMatrix(mat.NewDense(2, 1, []float64{0, 0}), mat.NewDense(2, 1, []float64{3, 4}))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(12.5), rm, 1e-10)
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
			yPred: mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}),
			want:  1,
		},
		{
			name:    "no variance in yTrue",
			yTrue:   mat.NewVecDense(5, []float64{3, 3, 3, 3, 3}),
			yPred:   mat.NewVecDense(5, []float64{2, 3, 4, 3, 3}),
			wantErr: true,
		},
		{
			name:  "worse than mean baseline",
			yTrue: mat.NewVecDense(4, []float64{1, 2, 3, 4}),
			yPred: mat.NewVecDense(4, []float64{4, 3, 2, 1}),
			want:  -3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestWeightedR2ScoreIgnoresZeroWeights(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{1, 2, 3, 100})
	yPred := mat.NewVecDense(4, []float64{1, 2, 3, -100})

	got, err := WeightedR2Score(yTrue, yPred, []float64{1, 1, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-10)

	_, err = WeightedR2Score(yTrue, yPred, []float64{1})
	assert.Error(t, err)
}

func TestFiniteR2ScoreConstantTarget(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{2, 2, 2})

	_, err := R2Score(yTrue, yTrue)
	assert.Error(t, err)

	got, err := FiniteR2Score(yTrue, yTrue, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = FiniteR2Score(yTrue, mat.NewVecDense(3, []float64{2, 2, 3}), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = FiniteR2Score(mat.NewVecDense(2, []float64{0, 2}), mat.NewVecDense(2, []float64{0, 1}), []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-12)
}

func TestMAPEAndExplainedVariance(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{10, 20, 0})
	yPred := mat.NewVecDense(3, []float64{11, 18, 5})
	mape, err := MAPE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, mape, 1e-10)

	// A constant offset is fully "explained".
	ev, err := ExplainedVarianceScore(
		mat.NewVecDense(4, []float64{1, 2, 3, 4}),
		mat.NewVecDense(4, []float64{2, 3, 4, 5}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev, 1e-10)
}

func BenchmarkRMSE(b *testing.B) {
	size := 10000
	yTrue := mat.NewVecDense(size, nil)
	yPred := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.1*float64(i%10))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = RMSE(yTrue, yPred)
	}
}
