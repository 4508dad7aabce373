package debrisguard

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/ode"
)

const (
	// μEarth is the Earth gravitational parameter in km^3/s^2.
	μEarth = 398600.4418
	// EarthRadiusKm is the mean equatorial radius.
	EarthRadiusKm = 6378.1363
	g0            = 9.80665 // m/s^2
)

// Parameter bounds. Adjustments outside these ranges stop being physically
// plausible ascent corrections, so actions clamp against them.
const (
	MinPitchOverTimeS  = 5.0
	MaxPitchOverTimeS  = 60.0
	MaxAzimuthBiasDeg  = 15.0
	MaxBurnStartOffset = 20.0
)

// TrajectoryParameters is the control vector adjusted during avoidance
// optimization. The zero value with a nominal pitch-over time describes the
// unmodified ascent.
type TrajectoryParameters struct {
	PitchOverTimeS   float64 // seconds after liftoff at which the pitch ramp starts
	AzimuthBiasDeg   float64 // heading bias off the nominal launch azimuth
	BurnStartOffsetS float64 // ignition delay relative to the nominal epoch
}

// NominalParameters returns the unperturbed control vector.
func NominalParameters() TrajectoryParameters {
	return TrajectoryParameters{PitchOverTimeS: 15}
}

// Clamp bounds every component to its physically plausible range.
func (p TrajectoryParameters) Clamp() TrajectoryParameters {
	p.PitchOverTimeS = math.Min(math.Max(p.PitchOverTimeS, MinPitchOverTimeS), MaxPitchOverTimeS)
	p.AzimuthBiasDeg = math.Min(math.Max(p.AzimuthBiasDeg, -MaxAzimuthBiasDeg), MaxAzimuthBiasDeg)
	p.BurnStartOffsetS = math.Min(math.Max(p.BurnStartOffsetS, 0), MaxBurnStartOffset)
	return p
}

// TrajectorySample is one point of the sampled ascent path.
type TrajectorySample struct {
	OffsetS     float64   // seconds since launch epoch
	Position    []float64 // km, same frame as debris propagation
	VelocityKmS float64
}

// Trajectory is the computed ascent profile over the climb window.
type Trajectory struct {
	Samples              []TrajectorySample
	ClimbTimeS           float64
	BurnTimeS            float64
	InsertionVelocityKmS float64
	TargetVelocityKmS    float64 // circular velocity at the target radius
}

// InsertionDeviation returns the relative deviation of the insertion velocity
// from the target circular velocity.
func (t Trajectory) InsertionDeviation() float64 {
	if t.TargetVelocityKmS == 0 {
		return 0
	}
	return math.Abs(t.InsertionVelocityKmS-t.TargetVelocityKmS) / t.TargetVelocityKmS
}

// TrajectoryConfig holds the integration settings.
type TrajectoryConfig struct {
	StepS              float64 // integration and sampling step
	MaxClimbTimeS      float64 // hard bound on the climb phase
	PropellantFraction float64 // share of liftoff mass burned over the burn time
	FinalPitchDeg      float64 // pitch angle reached at burnout
	LaunchAzimuthDeg   float64 // nominal heading, 90 = due east
}

// DefaultTrajectoryConfig returns the settings used by the mission loop
// unless a scenario overrides them.
func DefaultTrajectoryConfig() TrajectoryConfig {
	return TrajectoryConfig{
		StepS:              1,
		MaxClimbTimeS:      1200,
		PropellantFraction: 0.85,
		FinalPitchDeg:      10,
		LaunchAzimuthDeg:   90,
	}
}

// CalculateTrajectory integrates the ascent of the rocket towards the target
// altitude. The result is deterministic given (rocket, targetAltKm, params).
func CalculateTrajectory(rocket RocketProfile, targetAltKm float64, params TrajectoryParameters, cfg TrajectoryConfig) (Trajectory, error) {
	if cfg.StepS <= 0 {
		cfg = DefaultTrajectoryConfig()
	}
	if rocket.ThrustN/(rocket.MassKg*g0) <= 1 {
		return Trajectory{}, InfeasibleTrajectoryError{RocketType: rocket.Type, Reason: fmt.Sprintf("thrust-to-weight ratio %.2f does not exceed 1", rocket.ThrustN/(rocket.MassKg*g0))}
	}
	if targetAltKm > rocket.MaxAltitudeKm {
		return Trajectory{}, InfeasibleTrajectoryError{RocketType: rocket.Type, Reason: fmt.Sprintf("target altitude %.0f km exceeds rated %.0f km", targetAltKm, rocket.MaxAltitudeKm)}
	}
	params = params.Clamp()

	asc := newAscent(rocket, targetAltKm, params, cfg)
	ode.NewRK4(0, cfg.StepS, asc).Solve()
	if asc.err != nil {
		return Trajectory{}, asc.err
	}
	if !asc.reached {
		return Trajectory{}, InfeasibleTrajectoryError{RocketType: rocket.Type, Reason: fmt.Sprintf("target altitude %.0f km not reached within %.0f s", targetAltKm, cfg.MaxClimbTimeS)}
	}

	vCirc := math.Sqrt(μEarth / (EarthRadiusKm + targetAltKm))
	return Trajectory{
		Samples:              asc.samples,
		ClimbTimeS:           asc.climbTime,
		BurnTimeS:            rocket.BurnTimeS,
		InsertionVelocityKmS: vCirc * (1 + insertionPenalty(params)),
		TargetVelocityKmS:    vCirc,
	}, nil
}

// insertionPenalty is the reduced-order insertion accuracy model: deviations
// of the control vector from nominal degrade the insertion velocity
// quadratically. Coefficients keep the worst case within a few percent.
func insertionPenalty(params TrajectoryParameters) float64 {
	nominal := NominalParameters()
	dPitch := params.PitchOverTimeS - nominal.PitchOverTimeS
	dAz := params.AzimuthBiasDeg
	dBurn := params.BurnStartOffsetS
	return 1e-5*dPitch*dPitch + 2e-5*dAz*dAz + 1e-5*dBurn*dBurn
}

// ascent integrates the climb in a launch-site tangent frame and maps samples
// into the debris frame. It implements ode.Integrable.
type ascent struct {
	rocket     RocketProfile
	params     TrajectoryParameters
	cfg        TrajectoryConfig
	targetAltM float64

	// frame basis at the launch site (unit vectors, debris frame)
	up, east, north []float64
	headingDir      []float64

	burnStart, burnEnd float64
	dryMass, mDot      float64

	// state: [altitude m, vertical speed m/s, horizontal speed m/s, downrange m, mass kg]
	state     []float64
	elapsed   float64
	samples   []TrajectorySample
	climbTime float64
	reached   bool
	err       error
}

func newAscent(rocket RocketProfile, targetAltKm float64, params TrajectoryParameters, cfg TrajectoryConfig) *ascent {
	up := unit(rocket.LaunchPos)
	east := cross([]float64{0, 0, 1}, up)
	if norm(east) < 1e-9 {
		// Polar launch site: any tangent direction works as "east".
		east = []float64{1, 0, 0}
	}
	east = unit(east)
	north := cross(up, east)

	azimuth := Deg2rad(cfg.LaunchAzimuthDeg + params.AzimuthBiasDeg)
	sinA, cosA := math.Sincos(azimuth)
	headingDir := make([]float64, 3)
	for i := 0; i < 3; i++ {
		headingDir[i] = east[i]*sinA + north[i]*cosA
	}

	propellant := cfg.PropellantFraction * rocket.MassKg
	return &ascent{
		rocket:     rocket,
		params:     params,
		cfg:        cfg,
		targetAltM: targetAltKm * 1000,
		up:         up,
		east:       east,
		north:      north,
		headingDir: headingDir,
		burnStart:  params.BurnStartOffsetS,
		burnEnd:    params.BurnStartOffsetS + rocket.BurnTimeS,
		dryMass:    rocket.MassKg - propellant,
		mDot:       propellant / rocket.BurnTimeS,
		state:      []float64{0, 0, 0, 0, rocket.MassKg},
	}
}

// pitch returns the pitch angle (radians from horizontal) at time t.
func (a *ascent) pitch(t float64) float64 {
	sincePitchOver := t - a.burnStart - a.params.PitchOverTimeS
	if sincePitchOver <= 0 {
		return math.Pi / 2
	}
	rampDur := a.rocket.BurnTimeS - a.params.PitchOverTimeS
	if rampDur <= 0 {
		return math.Pi / 2
	}
	frac := math.Min(sincePitchOver/rampDur, 1)
	finalPitch := Deg2rad(a.cfg.FinalPitchDeg)
	return math.Pi/2 - frac*(math.Pi/2-finalPitch)
}

// GetState implements ode.Integrable.
func (a *ascent) GetState() []float64 {
	s := make([]float64, len(a.state))
	copy(s, a.state)
	return s
}

// SetState implements ode.Integrable and records one trajectory sample.
func (a *ascent) SetState(t float64, s []float64) {
	if anyNonFinite(s) {
		a.err = InfeasibleTrajectoryError{RocketType: a.rocket.Type, Reason: fmt.Sprintf("non-finite integration state at t=%.1f s", t)}
		return
	}
	if s[0] < 0 {
		if t < a.burnEnd {
			a.err = InfeasibleTrajectoryError{RocketType: a.rocket.Type, Reason: fmt.Sprintf("altitude went negative at t=%.1f s before burnout", t)}
			return
		}
		s[0] = 0
	}
	copy(a.state, s)
	a.elapsed = t
	a.samples = append(a.samples, TrajectorySample{
		OffsetS:     t,
		Position:    a.position(s[0], s[3]),
		VelocityKmS: math.Hypot(s[1], s[2]) / 1000,
	})
	if s[0] >= a.targetAltM && !a.reached {
		a.reached = true
		a.climbTime = t
	}
	// Ballistic apogee below the target means the climb can never complete.
	if !a.reached && t > a.burnEnd && s[1] <= 0 {
		a.err = InfeasibleTrajectoryError{RocketType: a.rocket.Type, Reason: fmt.Sprintf("apogee %.1f km below target after burnout", s[0]/1000)}
	}
}

// position maps (altitude m, downrange m) into the debris frame in km.
func (a *ascent) position(altM, downrangeM float64) []float64 {
	pos := make([]float64, 3)
	for i := 0; i < 3; i++ {
		pos[i] = a.rocket.LaunchPos[i] + a.up[i]*altM/1000 + a.headingDir[i]*downrangeM/1000
	}
	return pos
}

// Func implements ode.Integrable with the ascent dynamics: thrust along the
// pitch program, mass depletion over the burn, altitude-dependent gravity.
func (a *ascent) Func(t float64, s []float64) []float64 {
	h, vv, vh, m := s[0], s[1], s[2], s[4]
	fDot := make([]float64, 5)

	burning := t >= a.burnStart && t < a.burnEnd && m > a.dryMass
	var thrustAcc float64
	if burning {
		thrustAcc = a.rocket.ThrustN / m
		fDot[4] = -a.mDot
	}
	g := g0 * math.Pow(EarthRadiusKm*1000/(EarthRadiusKm*1000+h), 2)

	if t < a.burnStart && h <= 0 {
		// Still held on the pad waiting for ignition.
		return fDot
	}

	sinP, cosP := math.Sincos(a.pitch(t))
	fDot[0] = vv
	fDot[1] = thrustAcc*sinP - g
	fDot[2] = thrustAcc * cosP
	fDot[3] = vh
	return fDot
}

// Stop implements ode.Integrable.
func (a *ascent) Stop(t float64) bool {
	if a.err != nil || a.reached {
		return true
	}
	return t >= a.cfg.MaxClimbTimeS
}
