package domain

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pricingDomain "github.com/fd1az/synth-indexer/business/pricing/domain"
	"github.com/fd1az/synth-indexer/internal/asset"
	"github.com/fd1az/synth-indexer/internal/fixedpoint"
)

func obs(ts int64, price string) pricingDomain.Observation {
	return pricingDomain.NewObservation(asset.MAAPL, "test", time.Unix(ts, 0), fixedpoint.MustParse(price))
}

func TestAccumulator_CloseIsLatestByTimestamp(t *testing.T) {
	acc := NewAccumulator(obs(10, "100"), Interval1m)
	acc.Apply(obs(30, "102"))
	acc.Apply(obs(20, "99"))  // late arrival, earlier timestamp
	acc.Apply(obs(5, "101"))  // earliest: becomes open
	acc.Apply(obs(30, "103")) // same timestamp, later arrival wins

	c := acc.Candle()
	assert.Equal(t, int64(0), c.BucketStart)
	assert.Equal(t, "101", c.Open.String())
	assert.Equal(t, "103", c.High.String())
	assert.Equal(t, "99", c.Low.String())
	assert.Equal(t, "103", c.Close.String())
	assert.Equal(t, int64(5), c.ObservationCount)
	require.NoError(t, c.Validate())
}

// Open is the first arrival at the smallest timestamp, close the last arrival at the largest.
func TestAccumulator_ShuffledObservations(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*31))
			bucket := int64(7200)

			n := 2 + rng.IntN(40)
			seen := make([]pricingDomain.Observation, 0, n)
			for i := 0; i < n; i++ {
				// Twenty possible timestamps, so ties are common.
				ts := bucket + rng.Int64N(20)*180
				price := fmt.Sprintf("%d.%03d", 1+rng.IntN(500), rng.IntN(1000))
				seen = append(seen, obs(ts, price))
			}

			acc := NewAccumulator(seen[0], Interval1h)
			for i := 1; i <= len(seen); i++ {
				if i > 1 {
					acc.Apply(seen[i-1])
				}
				c := acc.Candle()
				require.NoError(t, c.Validate(), "after %d observations", i)

				first, last := seen[0], seen[0]
				high, low := seen[0].Price, seen[0].Price
				for _, o := range seen[:i] {
					if o.Timestamp < first.Timestamp {
						first = o
					}
					if o.Timestamp >= last.Timestamp {
						last = o
					}
					high = fixedpoint.Max(high, o.Price)
					low = fixedpoint.Min(low, o.Price)
				}

				assert.Equal(t, bucket, c.BucketStart)
				assert.Equal(t, first.Price.String(), c.Open.String(), "open after %d", i)
				assert.Equal(t, last.Price.String(), c.Close.String(), "close after %d", i)
				assert.Equal(t, high.String(), c.High.String())
				assert.Equal(t, low.String(), c.Low.String())
				assert.Equal(t, int64(i), c.ObservationCount)
			}
		})
	}
}

func TestCandle_Validate(t *testing.T) {
	good := NewAccumulator(obs(61, "10"), Interval1m).Candle()
	require.NoError(t, good.Validate())

	misaligned := good
	misaligned.BucketStart = 61
	assert.Error(t, misaligned.Validate())

	empty := good
	empty.ObservationCount = 0
	assert.Error(t, empty.Validate())

	inverted := good
	inverted.Low = fixedpoint.MustParse("11")
	assert.Error(t, inverted.Validate())

	badInterval := good
	badInterval.Interval = "7m"
	assert.Error(t, badInterval.Validate())
}
