package detection

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Physical constants used by range and Doppler synthesis
const (
	EarthRadiusM = 6371000.0
	SpeedOfLight = 299792458.0
	FeetToMeters = 0.3048

	degToRad = math.Pi / 180
)

// Position is a point above a spherical Earth
type Position struct {
	Lat  float64
	Lon  float64
	AltM float64
}

// SurfaceDistance is the haversine great-circle distance in meters
func SurfaceDistance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := lat1*degToRad, lat2*degToRad
	dphi := phi2 - phi1
	dlambda := (lon2 - lon1) * degToRad

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlambda/2)*math.Sin(dlambda/2)
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(math.Min(1, a)))
}

// Distance combines surface distance and altitude difference
func Distance(a, b Position) float64 {
	return math.Hypot(SurfaceDistance(a.Lat, a.Lon, b.Lat, b.Lon), b.AltM-a.AltM)
}

// BistaticRange is the transmitter to target to receiver path length
func BistaticRange(tx, target, rx Position) float64 {
	return Distance(tx, target) + Distance(target, rx)
}

// ecef maps a position onto a sphere of radius EarthRadiusM + altitude
func ecef(p Position) r3.Vec {
	r := EarthRadiusM + p.AltM
	lat, lon := p.Lat*degToRad, p.Lon*degToRad
	return r3.Vec{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// horizontalVelocity converts ground speed and track into an ECEF velocity
// vector in m/s
func horizontalVelocity(p Position, speedMS, trackDeg float64) r3.Vec {
	lat, lon := p.Lat*degToRad, p.Lon*degToRad
	east := r3.Vec{X: -math.Sin(lon), Y: math.Cos(lon)}
	north := r3.Vec{
		X: -math.Sin(lat) * math.Cos(lon),
		Y: -math.Sin(lat) * math.Sin(lon),
		Z: math.Cos(lat),
	}
	track := trackDeg * degToRad
	return r3.Add(
		r3.Scale(speedMS*math.Sin(track), east),
		r3.Scale(speedMS*math.Cos(track), north),
	)
}

// bistaticRangeRate is dR/dt for a target moving with velocity v: the
// velocity projected onto the unit vectors pointing away from tx and rx.
// A leg of zero length contributes nothing.
func bistaticRangeRate(tx, target, rx Position, v r3.Vec) float64 {
	p := ecef(target)
	rate := 0.0
	for _, site := range []Position{tx, rx} {
		los := r3.Sub(p, ecef(site))
		n := r3.Norm(los)
		if n == 0 {
			continue
		}
		rate += r3.Dot(v, r3.Scale(1/n, los))
	}
	return rate
}

// totalSpeedDoppler is 2·f·v/c
func totalSpeedDoppler(frequencyHz, speedMS float64) float64 {
	return 2 * frequencyHz * speedMS / SpeedOfLight
}

// projectedDoppler is -f/c · dR/dt
func projectedDoppler(frequencyHz float64, tx, target, rx Position, speedMS, trackDeg float64) float64 {
	v := horizontalVelocity(target, speedMS, trackDeg)
	return -frequencyHz / SpeedOfLight * bistaticRangeRate(tx, target, rx, v)
}
