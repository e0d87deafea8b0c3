// Package pricing implements the distance and price resolver: it turns a
// (pickup, dropoff, pickup time) triple into a deterministic GBP price using
// zone overrides, a routed-distance fallback chain, and a time-of-day
// multiplier. All arithmetic is in integer pence.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/fellsidecars/backend/internal/domain"
)

// Router is the narrow contract with the external routing provider.
// Implementations must respect ctx cancellation; the resolver bounds every
// call with a timeout.
type Router interface {
	// DrivingMiles returns the driving distance in miles between two
	// free-text addresses.
	DrivingMiles(ctx context.Context, pickup, dropoff string) (float64, error)
}

// Geocoder resolves a free-text address to a coordinate pair. It is the
// second stage of the distance fallback chain and must fail on no-match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng float64, err error)
}

// roadIndirectionFactor inflates great-circle distance to approximate real
// road distance when the routing provider is unavailable. Empirical.
const roadIndirectionFactor = 1.25

// Config carries the pricing policy knobs. ZoneOrder fixes the evaluation
// order of the substring table so multi-zone matches are deterministic.
type Config struct {
	MinimumFarePence int64
	PerMilePence     int64
	VATBasisPoints   int64

	NightStartHour int
	NightPercent   int64
	// NightAppliesToFixedFares names the policy choice: by default the night
	// uplift applies to metered fares only, never to fixed zone fares.
	NightAppliesToFixedFares bool

	ZoneFares map[string]int64
	ZoneOrder []string

	// Location is the zone used to evaluate the local pickup hour.
	Location *time.Location

	// ExternalTimeout bounds each routing and geocoding call. The fallback
	// chain activates on timeout, not just on hard failure.
	ExternalTimeout time.Duration
}

// Resolver computes quotes. It is safe for concurrent use.
type Resolver struct {
	cfg      Config
	router   Router
	geocoder Geocoder
	log      *slog.Logger
}

// NewResolver constructs a Resolver. log may be nil, in which case the
// default slog logger is used.
func NewResolver(cfg Config, router Router, geocoder Geocoder, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = 3 * time.Second
	}
	return &Resolver{cfg: cfg, router: router, geocoder: geocoder, log: log}
}

// Quote prices a journey. pickupTime may be nil for "as soon as possible"
// requests, which are priced at the day rate.
//
// Returns domain.ErrValidation for empty addresses and
// domain.ErrLocationNotFound when the entire distance fallback chain is
// exhausted. Routing provider failures are recovered silently via the
// geocoder fallback and never surfaced.
func (r *Resolver) Quote(ctx context.Context, pickup, dropoff string, pickupTime *time.Time) (domain.Quote, error) {
	np := normalize(pickup)
	nd := normalize(dropoff)
	if np == "" || nd == "" {
		return domain.Quote{}, fmt.Errorf("pricing.Resolver.Quote: %w: pickup and dropoff are required", domain.ErrValidation)
	}

	q := domain.Quote{Pickup: np, Dropoff: nd, PickupTime: pickupTime}

	if zonePence, ok := r.zoneFare(np, nd); ok {
		q.Fixed = true
		base := zonePence
		if r.cfg.NightAppliesToFixedFares && r.isNight(pickupTime) {
			base = domain.ScalePence(base, r.cfg.NightPercent, 100)
		}
		q.PricePence = r.withVAT(base)
		return q, nil
	}

	miles, err := r.resolveMiles(ctx, np, nd)
	if err != nil {
		return domain.Quote{}, err
	}
	q.DistanceMiles = &miles

	base := domain.PenceFromFloat(miles * float64(r.cfg.PerMilePence))
	if base < r.cfg.MinimumFarePence {
		base = r.cfg.MinimumFarePence
	}
	if r.isNight(pickupTime) {
		base = domain.ScalePence(base, r.cfg.NightPercent, 100)
	}
	q.PricePence = r.withVAT(base)
	return q, nil
}

// zoneFare checks both normalized addresses against the zone override table
// in deterministic order. First matching zone wins.
func (r *Resolver) zoneFare(pickup, dropoff string) (int64, bool) {
	for _, match := range r.cfg.ZoneOrder {
		if strings.Contains(pickup, match) || strings.Contains(dropoff, match) {
			return r.cfg.ZoneFares[match], true
		}
	}
	return 0, false
}

// resolveMiles runs the three-stage fallback chain:
// routing provider → geocode both ends and apply the road indirection factor
// → domain.ErrLocationNotFound.
func (r *Resolver) resolveMiles(ctx context.Context, pickup, dropoff string) (float64, error) {
	routeCtx, cancel := context.WithTimeout(ctx, r.cfg.ExternalTimeout)
	miles, err := r.router.DrivingMiles(routeCtx, pickup, dropoff)
	cancel()
	if err == nil && miles > 0 {
		return miles, nil
	}
	// Routing unavailability is recovered, not surfaced.
	r.log.DebugContext(ctx, "routing provider unavailable, falling back to geocoder",
		"error", err)

	pLat, pLng, err := r.geocodeOne(ctx, pickup)
	if err != nil {
		return 0, fmt.Errorf("pricing.Resolver.Quote: pickup %q: %w", pickup, domain.ErrLocationNotFound)
	}
	dLat, dLng, err := r.geocodeOne(ctx, dropoff)
	if err != nil {
		return 0, fmt.Errorf("pricing.Resolver.Quote: dropoff %q: %w", dropoff, domain.ErrLocationNotFound)
	}

	return haversineMiles(pLat, pLng, dLat, dLng) * roadIndirectionFactor, nil
}

func (r *Resolver) geocodeOne(ctx context.Context, address string) (float64, float64, error) {
	geoCtx, cancel := context.WithTimeout(ctx, r.cfg.ExternalTimeout)
	defer cancel()
	return r.geocoder.Geocode(geoCtx, address)
}

// isNight reports whether the local pickup hour is at or after the configured
// night start hour. A nil pickup time means "now, at the day rate" — the
// booking flow always passes an explicit time.
func (r *Resolver) isNight(pickupTime *time.Time) bool {
	if pickupTime == nil {
		return false
	}
	return pickupTime.In(r.cfg.Location).Hour() >= r.cfg.NightStartHour
}

// withVAT applies the VAT rate in basis points, round-half-up.
func (r *Resolver) withVAT(pence int64) int64 {
	return domain.ScalePence(pence, 10000+r.cfg.VATBasisPoints, 10000)
}

// normalize case-folds and trims an address so zone matching and canonical
// quote serialization are insensitive to formatting.
func normalize(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// haversineMiles returns the great-circle distance between two coordinates.
func haversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	const milesPerKm = 0.621371

	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h)) * milesPerKm
}
