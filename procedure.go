package gcra

import (
	"math"
	"strconv"
	"time"
)

// epoch2017 is 2017-01-01T00:00:00Z. Store time is shifted by it before
// any floating point arithmetic, see allowScriptSrc.
const epoch2017 = 1483228800

// storeSeconds converts t the way the scripts convert Redis TIME.
func storeSeconds(t time.Time) float64 {
	return float64(t.Unix()-epoch2017) + float64(t.Nanosecond()/1000)/1000000
}

// tick is the resolution of Redis TIME. A token count within one tick of a
// whole number of emission intervals counts as that whole number.
const tick = 1e-6

// available converts diff seconds of spare capacity into tokens.
func available(diff, emissionInterval float64) float64 {
	tokens := diff / emissionInterval
	whole := math.Floor(tokens + 0.5)
	if math.Abs(tokens-whole)*emissionInterval < tick {
		return whole
	}
	return tokens
}

// decision is the native twin of the allow script's reply.
type decision struct {
	granted    float64
	remaining  float64
	retryAfter float64
	resetAfter float64

	// newTAT must be stored with a TTL of ceil(resetAfter) when write is set.
	newTAT float64
	write  bool
}

// decide runs the allow script's arithmetic. tat is the stored value, found
// reports whether the key existed.
func decide(tat float64, found bool, now, burst, rate, period, cost float64) decision {
	emissionInterval := period / rate
	burstOffset := emissionInterval * burst

	if !found {
		tat = now
	}
	tat = math.Max(tat, now)

	// tat - now is exactly 0 for a fresh or idle key.
	diff := burstOffset - (tat - now)
	remaining := available(diff, emissionInterval)

	if remaining < 1 {
		return decision{
			retryAfter: emissionInterval - diff,
			resetAfter: tat - now,
		}
	}

	if remaining < cost {
		cost = remaining
		remaining = 0
	} else {
		remaining -= cost
	}

	newTAT := tat + emissionInterval*cost
	resetAfter := (tat - now) + emissionInterval*cost
	return decision{
		granted:    cost,
		remaining:  remaining,
		retryAfter: -1,
		resetAfter: resetAfter,
		newTAT:     newTAT,
		write:      resetAfter > 0,
	}
}

// inspect runs the peek script's arithmetic.
func inspect(tat float64, found bool, now, burst, rate, period float64) decision {
	emissionInterval := period / rate
	burstOffset := emissionInterval * burst

	if !found {
		tat = now
	}
	tat = math.Max(tat, now)

	diff := burstOffset - (tat - now)
	d := decision{
		remaining:  available(diff, emissionInterval),
		retryAfter: -1,
		resetAfter: tat - now,
	}
	if d.remaining < 1 {
		d.retryAfter = emissionInterval - diff
		d.remaining = 0
	}
	return d
}

// formatTAT renders a tat the way the allow script stores it. Seventeen
// significant digits survive the round trip through a Redis string.
func formatTAT(tat float64) string {
	return strconv.FormatFloat(tat, 'g', 17, 64)
}

// ttlSeconds is the expiry the scripts set for a stored tat.
func ttlSeconds(resetAfter float64) int64 {
	return int64(math.Ceil(resetAfter))
}
