package tiko

import "fmt"

// Mode is a property mode in the service's vocabulary.
type Mode string

const (
	ModeNormal  Mode = "normal"
	ModeOff     Mode = "off"
	ModeFrost   Mode = "frost"
	ModeAbsence Mode = "absence"
)

// ClimateMode is the caller-facing climate vocabulary.
type ClimateMode string

const (
	ClimateHeat ClimateMode = "heat"
	ClimateOff  ClimateMode = "off"
	ClimateEco  ClimateMode = "eco"
	ClimateAway ClimateMode = "away"
)

var serviceByClimate = map[ClimateMode]Mode{
	ClimateHeat: ModeNormal,
	ClimateOff:  ModeOff,
	ClimateEco:  ModeFrost,
	ClimateAway: ModeAbsence,
}

// climateByService is the inverse mapping. Built at init so a mapping
// edit that breaks the bijection fails immediately, not on lookup.
var climateByService = func() map[Mode]ClimateMode {
	inverse := make(map[Mode]ClimateMode, len(serviceByClimate))
	for climate, service := range serviceByClimate {
		if _, dup := inverse[service]; dup {
			panic(fmt.Sprintf("tiko: service mode %q mapped twice", service))
		}
		inverse[service] = climate
	}
	return inverse
}()

// ServiceMode resolves a caller-facing mode to the service token.
func ServiceMode(mode ClimateMode) (Mode, error) {
	service, ok := serviceByClimate[mode]
	if !ok {
		return "", ValidationError{Msg: fmt.Sprintf("unknown climate mode %q", mode)}
	}
	return service, nil
}

// ClimateModeFor resolves a service token back to the caller-facing
// mode.
func ClimateModeFor(mode Mode) (ClimateMode, error) {
	climate, ok := climateByService[mode]
	if !ok {
		return "", ValidationError{Msg: fmt.Sprintf("unknown service mode %q", mode)}
	}
	return climate, nil
}
