package training

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptyTrainingSet  = errors.New("training set is empty")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// LinearModel is an ordinary least squares fit with an intercept
type LinearModel struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	RSquared     float64   `json:"r_squared"`
	Samples      int       `json:"samples"`
}

// Predict evaluates the model on one feature vector
func (m *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: model has %d coefficients, got %d features",
			ErrDimensionMismatch, len(m.Coefficients), len(features))
	}
	y := m.Intercept
	for i, f := range features {
		y += m.Coefficients[i] * f
	}
	return y, nil
}

// FitOLS fits y ≈ b0 + X·b by least squares. The centered system is solved
// through an SVD, giving the minimum-norm solution when features are
// collinear, and b0 is recovered from the column means.
func FitOLS(x [][]float64, y []float64) (*LinearModel, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d feature rows, %d targets", ErrDimensionMismatch, n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return nil, fmt.Errorf("%w: rows have no features", ErrDimensionMismatch)
	}

	xMeans := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i, row := range x {
			if len(row) != p {
				return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrDimensionMismatch, i, len(row), p)
			}
			col[i] = row[j]
		}
		xMeans[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range x {
		for j, v := range row {
			xc.Set(i, j, v-xMeans[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return nil, errors.New("svd factorization failed")
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(n, p))

	var beta mat.VecDense
	if rank := svd.Rank(rcond); rank > 0 {
		svd.SolveVecTo(&beta, yc, rank)
	} else {
		beta.ReuseAsVec(p)
	}

	model := &LinearModel{
		Coefficients: make([]float64, p),
		Samples:      n,
	}
	model.Intercept = yMean
	for j := 0; j < p; j++ {
		model.Coefficients[j] = beta.AtVec(j)
		model.Intercept -= xMeans[j] * model.Coefficients[j]
	}

	estimates := make([]float64, n)
	for i, row := range x {
		estimates[i], _ = model.Predict(row)
	}
	model.RSquared = rSquared(estimates, y)

	return model, nil
}

// rSquared is the coefficient of determination. A constant target scores 1
// when predicted exactly and 0 otherwise.
func rSquared(estimates, values []float64) float64 {
	if len(values) < 2 || stat.Variance(values, nil) == 0 {
		for i := range values {
			if math.Abs(estimates[i]-values[i]) > 1e-9 {
				return 0
			}
		}
		return 1
	}
	return stat.RSquaredFrom(estimates, values, nil)
}
