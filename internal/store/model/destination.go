package model

import (
	"fmt"
	"strings"
)

// Destination identifies one of the systems a study is sent to. Mercure is the processing
// gateway; the rest are post-AI routing targets.
type Destination string

const (
	DestinationMercure Destination = "MERCURE"
	DestinationLpch    Destination = "LPCH"
	DestinationLpcht   Destination = "LPCHT"
	DestinationModlink Destination = "MODLINK"
)

// RoutingDestinations are the downstream targets a fully complete study must reach.
var RoutingDestinations = []Destination{DestinationLpch, DestinationLpcht, DestinationModlink}

var destinationAliases = map[string]Destination{
	"MERCURE":     DestinationMercure,
	"LPCH":        DestinationLpch,
	"LPCHROUTER":  DestinationLpch,
	"LPCHT":       DestinationLpcht,
	"LPCHTROUTER": DestinationLpcht,
	"MODLINK":     DestinationModlink,
}

type ErrUnknownDestination struct {
	error
}

func NewErrUnknownDestination(name string) *ErrUnknownDestination {
	return &ErrUnknownDestination{fmt.Errorf("Unknown destination: %s", name)}
}

// ParseDestination matches case-insensitively and resolves router aliases.
func ParseDestination(name string) (Destination, error) {
	d, ok := destinationAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return "", NewErrUnknownDestination(name)
	}
	return d, nil
}

// ColumnPrefix is the prefix of the stage columns in study_workflows.
func (d Destination) ColumnPrefix() string {
	return strings.ToLower(string(d))
}

func (d Destination) String() string {
	return string(d)
}
