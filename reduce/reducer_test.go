package reduce

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/achilleasa/stereoscan/device"
	"github.com/achilleasa/stereoscan/log"
)

func init() {
	log.Discard()
}

func newTestReducer(t *testing.T, groupSize int) *Reducer {
	dev := device.NewCPUDevice(4)
	require.NoError(t, dev.Init(Program()))
	t.Cleanup(dev.Close)

	r, err := NewReducer(dev, groupSize)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestRounds(t *testing.T) {
	type spec struct {
		n, g int
		exp  int
	}
	specs := []spec{
		{0, 128, 0},
		{1, 128, 0},
		{2, 128, 1},
		{128, 128, 1},
		{129, 128, 2},
		{128 * 128, 128, 2},
		{128*128 + 1, 128, 3},
		{1390 * 1110, 128, 3},
		{5, 2, 3},
		{1, 1, 0},
	}

	for index, s := range specs {
		if got := Rounds(s.n, s.g); got != s.exp {
			t.Fatalf("[spec %d] expected Rounds(%d, %d) to be %d; got %d", index, s.n, s.g, s.exp, got)
		}
	}
}

func TestSumSmallArray(t *testing.T) {
	r := newTestReducer(t, 2)

	sum, _, err := r.SumSlice([]float32{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, float32(15), sum)
}

func TestSumTrivialSizes(t *testing.T) {
	r := newTestReducer(t, 128)

	sum, elapsed, err := r.SumSlice(nil)
	require.NoError(t, err)
	assert.Equal(t, float32(0), sum)
	assert.Zero(t, elapsed)

	sum, _, err = r.SumSlice([]float32{42.5})
	require.NoError(t, err)
	assert.Equal(t, float32(42.5), sum)
}

func TestSumMatchesSequentialSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, groupSize := range []int{2, 3, 7, 64, 128, 256} {
		r := newTestReducer(t, groupSize)

		for _, n := range []int{2, 3, groupSize - 1, groupSize, groupSize + 1, 1000, 4097, 33333} {
			if n < 2 {
				continue
			}

			data := make([]float32, n)
			ref := make([]float64, n)
			for i := range data {
				data[i] = float32(rng.Intn(100))
				ref[i] = float64(data[i])
			}

			sum, _, err := r.SumSlice(data)
			require.NoError(t, err)

			// Integer totals below 2^24 keep every partial sum exact.
			exp := floats.Sum(ref)
			if float64(sum) != exp {
				t.Fatalf("[group %d, n %d] expected sum to be %f; got %f", groupSize, n, exp, sum)
			}
		}
	}
}

func TestSumFractionalValuesWithinTolerance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	r := newTestReducer(t, 128)

	n := 1390 * 7
	data := make([]float32, n)
	ref := make([]float64, n)
	for i := range data {
		data[i] = rng.Float32() * 255
		ref[i] = float64(data[i])
	}

	sum, _, err := r.SumSlice(data)
	require.NoError(t, err)
	assert.InEpsilon(t, floats.Sum(ref), float64(sum), 1e-5)
}

func TestSumUsesPairParity(t *testing.T) {
	r := newTestReducer(t, 2)

	// Five values take three rounds: Even -> Odd -> Even -> Odd.
	pair, err := NewPair(r.dev, 5, 2)
	require.NoError(t, err)
	defer pair.Release()
	require.NoError(t, pair.Even.WriteFloat32([]float32{1, 2, 3, 4, 5}, 0))

	sum, _, err := r.Sum(pair, 5)
	require.NoError(t, err)
	assert.Equal(t, float32(15), sum)

	odd := make([]float32, 1)
	require.NoError(t, pair.Odd.ReadFloat32(odd, 0))
	assert.Equal(t, float32(15), odd[0])
	assert.Equal(t, pair.Odd, pair.source(Rounds(5, 2)))
}

func TestSumRejectsSmallPair(t *testing.T) {
	r := newTestReducer(t, 4)

	pair, err := NewPair(r.dev, 4, 4)
	require.NoError(t, err)
	defer pair.Release()

	_, _, err = r.Sum(pair, 10)
	assert.ErrorIs(t, err, device.ErrInsufficientBufferSize)
}

func TestInvalidGroupSize(t *testing.T) {
	dev := device.NewCPUDevice(1)
	require.NoError(t, dev.Init(Program()))
	defer dev.Close()

	_, err := NewReducer(dev, 1)
	assert.ErrorIs(t, err, ErrInvalidGroupSize)

	_, err = NewPair(dev, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidGroupSize)
}
