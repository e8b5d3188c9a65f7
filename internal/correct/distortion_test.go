package correct

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/testutil"
)

func TestCircleToEllipse_IsInverse(t *testing.T) {
	t.Parallel()

	id := mat.NewDiagDense(2, []float64{1, 1})
	for az := 0.0; az < 2*math.Pi; az += math.Pi / 7 {
		for _, s := range []float64{-0.9, -0.25, 0, 0.013, 0.0243, 0.5, 0.9} {
			e2c := EllipseToCircle(az, s)
			c2e, err := CircleToEllipse(az, s)
			require.NoError(t, err)

			var prod mat.Dense
			prod.Mul(e2c, c2e)
			assert.True(t, mat.EqualApprox(&prod, id, 1e-12), "az=%g s=%g:\n%v", az, s, mat.Formatted(&prod))
		}
	}
}

func TestEllipseToCircle_ZeroStretchIsIdentity(t *testing.T) {
	t.Parallel()

	m := EllipseToCircle(1.2, 0)
	assert.True(t, mat.EqualApprox(m, mat.NewDiagDense(2, []float64{1, 1}), 1e-12))
}

func TestApplyAffine_IdentityReproducesInput(t *testing.T) {
	t.Parallel()

	im := cred.NewImage(7, 5)
	for i := range im.Pix {
		im.Pix[i] = float64((i * 37) % 101)
	}
	out, err := ApplyAffine(im, mat.NewDiagDense(2, []float64{1, 1}), 3, 2)
	require.NoError(t, err)
	for i := range im.Pix {
		assert.InDelta(t, im.Pix[i], out.Pix[i], 1e-9)
	}
}

func TestApplyAffine_AnchoredAtCenter(t *testing.T) {
	t.Parallel()

	im := cred.NewImage(9, 9)
	for i := range im.Pix {
		im.Pix[i] = 5
	}
	im.Set(4, 4, 50)

	out, err := ApplyAffine(im, mat.NewDiagDense(2, []float64{2, 2}), 4, 4)
	require.NoError(t, err)
	assert.InDelta(t, 50, out.At(4, 4), 1e-9, "center maps onto itself")
	assert.Equal(t, 0.0, out.At(0, 0), "samples outside the input are filled with 0")
}

func TestApplyAffine_RejectsNon2x2(t *testing.T) {
	t.Parallel()

	_, err := ApplyAffine(cred.NewImage(2, 2), mat.NewDense(3, 3, nil), 0, 0)
	assert.Error(t, err)
}

func TestDistortion_RoundTrip(t *testing.T) {
	t.Parallel()

	const size = 41
	pix := testutil.GaussianSpot(size, size, 20, 20, 1000, 4, 0)
	im, err := cred.ImageFromUint16(size, size, pix)
	require.NoError(t, err)

	d := cred.DistortionParams{Azimuth: 83.37 * math.Pi / 180, Stretch: 0.0243}
	center := cred.Point{X: 20, Y: 20}

	distorted, err := AddDistortion(im, d, center)
	require.NoError(t, err)
	restored, err := RemoveDistortion(distorted, d, center)
	require.NoError(t, err)

	for r := 10; r < 31; r++ {
		for c := 10; c < 31; c++ {
			assert.InDelta(t, im.At(r, c), restored.At(r, c), 15, "pixel (%d,%d)", r, c)
		}
	}
}
