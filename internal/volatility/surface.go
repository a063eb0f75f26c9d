package volatility

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/contactkeval/option-vol/internal/calendar"
	"github.com/contactkeval/option-vol/internal/daycount"
)

// SmilePoint is one quoted (strike, volatility) pair.
type SmilePoint struct {
	Strike float64
	Vol    float64
}

// Smile is the set of quoted volatilities for a single expiry.
type Smile struct {
	Expiry time.Time
	Points []SmilePoint
}

type smile struct {
	expiry  time.Time
	t       float64
	strikes []float64
	vols    []float64
}

// volAt interpolates linearly in strike with flat extrapolation.
func (s smile) volAt(k float64) float64 {
	n := len(s.strikes)
	if n == 1 || k <= s.strikes[0] {
		return s.vols[0]
	}
	if k >= s.strikes[n-1] {
		return s.vols[n-1]
	}
	i := sort.SearchFloat64s(s.strikes, k)
	if s.strikes[i] == k {
		return s.vols[i]
	}
	k0, k1 := s.strikes[i-1], s.strikes[i]
	w := (k - k0) / (k1 - k0)
	return s.vols[i-1] + w*(s.vols[i]-s.vols[i-1])
}

// Surface is a strike/expiry volatility surface. Within an expiry it
// interpolates volatility linearly in strike; across expiries it
// interpolates total variance linearly in time. Outside the quoted range
// volatility is extrapolated flat in both dimensions.
type Surface struct {
	referenceDate time.Time
	cal           calendar.ID
	dayCounter    daycount.Convention
	smiles        []smile
}

// NewSurface validates and freezes the given smiles. Input slices are
// copied; the caller may reuse them.
func NewSurface(referenceDate time.Time, cal calendar.ID, dc daycount.Convention, smiles []Smile) (*Surface, error) {
	if len(smiles) == 0 {
		return nil, ErrEmptySurface
	}
	if dc == nil {
		dc = daycount.Actual365Fixed{}
	}
	ref := calendar.DateOf(referenceDate)

	out := make([]smile, 0, len(smiles))
	for _, sm := range smiles {
		t := dc.YearFraction(ref, sm.Expiry)
		if t <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrExpiryBeforeReference, sm.Expiry.Format("2006-01-02"))
		}
		if len(sm.Points) == 0 {
			return nil, fmt.Errorf("%w: empty smile at %s", ErrEmptySurface, sm.Expiry.Format("2006-01-02"))
		}
		pts := append([]SmilePoint(nil), sm.Points...)
		sort.Slice(pts, func(i, j int) bool { return pts[i].Strike < pts[j].Strike })

		s := smile{expiry: sm.Expiry, t: t}
		for _, p := range pts {
			if p.Vol < 0 || math.IsNaN(p.Vol) || math.IsInf(p.Vol, 0) {
				return nil, fmt.Errorf("%w: %v at strike %v", ErrInvalidVolatility, p.Vol, p.Strike)
			}
			if n := len(s.strikes); n > 0 && s.strikes[n-1] == p.Strike {
				// Duplicate strike: keep the average.
				s.vols[n-1] = (s.vols[n-1] + p.Vol) / 2
				continue
			}
			s.strikes = append(s.strikes, p.Strike)
			s.vols = append(s.vols, p.Vol)
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].t < out[j].t })
	for i := 1; i < len(out); i++ {
		if out[i].t == out[i-1].t {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateExpiry, out[i].expiry.Format("2006-01-02"))
		}
	}

	return &Surface{referenceDate: ref, cal: cal, dayCounter: dc, smiles: out}, nil
}

// VolatilityAt returns the interpolated volatility.
func (s *Surface) VolatilityAt(strike float64, maturity time.Time) float64 {
	t := s.dayCounter.YearFraction(s.referenceDate, maturity)
	first, last := s.smiles[0], s.smiles[len(s.smiles)-1]
	if t <= first.t {
		return first.volAt(strike)
	}
	if t >= last.t {
		return last.volAt(strike)
	}

	i := sort.Search(len(s.smiles), func(i int) bool { return s.smiles[i].t >= t })
	hi, lo := s.smiles[i], s.smiles[i-1]
	vLo, vHi := lo.volAt(strike), hi.volAt(strike)
	wLo, wHi := vLo*vLo*lo.t, vHi*vHi*hi.t
	w := wLo + (wHi-wLo)*(t-lo.t)/(hi.t-lo.t)
	if w <= 0 {
		return 0
	}
	return math.Sqrt(w / t)
}

// Expiries lists the quoted expiries in ascending order.
func (s *Surface) Expiries() []time.Time {
	out := make([]time.Time, len(s.smiles))
	for i, sm := range s.smiles {
		out[i] = sm.expiry
	}
	return out
}

func (s *Surface) ReferenceDate() time.Time        { return s.referenceDate }
func (s *Surface) DayCounter() daycount.Convention { return s.dayCounter }
func (s *Surface) Calendar() calendar.ID           { return s.cal }
