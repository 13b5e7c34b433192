package cmd

// Component packages register their factories with the engine on import.
// A model specification can only declare what is linked in here.
import (
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/disease"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/intervention"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/observer"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/population"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/risk"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/treatment"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/wasting"
)
