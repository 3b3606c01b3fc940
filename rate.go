package gcra

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RateSpec describes the bucket a key is checked against.
//
// Counts are whole tokens. A fractional rate can be expressed by scaling
// Rate and Period together (3 per 2s rather than 1.5 per second), and a
// fractional cost by scaling Cost, Rate and Burst by the same factor.
type RateSpec struct {
	// Burst is how many tokens a fresh key can spend at once.
	Burst int64 `validate:"gte=0"`

	// Rate is the number of tokens refilled every Period.
	Rate int64 `validate:"gt=0"`

	// Period is the window Rate tokens are refilled over. It is sent to the
	// store in seconds.
	Period time.Duration `validate:"gt=0"`

	// Cost is the number of tokens the request asks for.
	Cost int64 `validate:"gt=0"`
}

var validate = validator.New()

// Validate reports an error wrapping ErrInvalidSpec when s has a
// non-positive rate, period or cost, or a negative burst.
func (s RateSpec) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	fe := verrs[0]
	cmp := "greater than"
	if fe.Tag() == "gte" {
		cmp = "at least"
	}
	return fmt.Errorf("%w: %s must be %s %s, got %v (%s)",
		ErrInvalidSpec, strings.ToLower(fe.Field()), cmp, fe.Param(), fe.Value(), s)
}

func (s RateSpec) String() string {
	return fmt.Sprintf("%d req/%s (burst %d, cost %d)", s.Rate, fmtDur(s.Period), s.Burst, s.Cost)
}

// EmissionInterval is the time one token takes to refill.
func (s RateSpec) EmissionInterval() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(s.Period) / float64(s.Rate))
}

// WithCost returns a copy of s asking for n tokens.
func (s RateSpec) WithCost(n int64) RateSpec {
	s.Cost = n
	return s
}

// WithBurst returns a copy of s allowing n tokens at once.
func (s RateSpec) WithBurst(n int64) RateSpec {
	s.Burst = n
	return s
}

// args renders s as the script arguments: burst, rate, period seconds, cost.
func (s RateSpec) args() []interface{} {
	return []interface{}{
		strconv.FormatInt(s.Burst, 10),
		strconv.FormatInt(s.Rate, 10),
		strconv.FormatFloat(s.Period.Seconds(), 'f', -1, 64),
		strconv.FormatInt(s.Cost, 10),
	}
}

func fmtDur(d time.Duration) string {
	switch d {
	case time.Second:
		return "s"
	case time.Minute:
		return "m"
	case time.Hour:
		return "h"
	}
	return d.String()
}

// Every returns a standard bucket refilling n tokens per period: the burst
// equals the rate and each request costs one token. Use WithBurst or build a
// RateSpec directly for a larger burst.
func Every(n int64, period time.Duration) RateSpec {
	return RateSpec{Burst: n, Rate: n, Period: period, Cost: 1}
}

// PerSecond returns a standard bucket of n requests per second.
func PerSecond(n int64) RateSpec {
	return Every(n, time.Second)
}

// PerMinute returns a standard bucket of n requests per minute.
func PerMinute(n int64) RateSpec {
	return Every(n, time.Minute)
}

// PerHour returns a standard bucket of n requests per hour.
func PerHour(n int64) RateSpec {
	return Every(n, time.Hour)
}

// multiple treats a count below one as one.
func multiple(n int) time.Duration {
	if n < 1 {
		return 1
	}
	return time.Duration(n)
}
