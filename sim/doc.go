// Package sim provides the core time-step microsimulation engine for
// COMPASS-SAM.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - spec/: the model specification (component manifest + configuration)
//   - table.go: the columnar population store simulants live in
//   - pipeline.go: the values system components publish rates through
//   - randomness.go: keyed per-simulant random streams
//   - simulator.go: setup, the step loop, and observation collection
//
// # Architecture
//
// The sim package defines the engine fabric; model behavior lives in
// sub-packages, one per component family:
//   - sim/population/: cohort initialization, aging, mortality, fertility
//   - sim/disease/: multi-state disease machines (SIS models)
//   - sim/risk/: categorical risk exposures and their rate effects
//   - sim/wasting/: the child wasting state machine and its treatment split
//   - sim/treatment/: supplementation and treatment-coverage components
//   - sim/intervention/: scenario gating and coverage scale-up
//   - sim/observer/: stratified outcome accumulation
//   - sim/artifact/: the SQLite input-data store and demographic lookups
//   - sim/params/: uncertain model constants realized per draw
//
// Sub-packages register their constructors via init() functions through
// RegisterComponent; a run resolves its manifest against that registry
// and sets components up in document order.
//
// # Lifecycle
//
// Each step fires four phases: time_step__prepare, time_step,
// time_step__cleanup, collect_metrics. Listeners order by priority, then
// by registration order, so a manifest fully determines execution order.
// Components never call each other: they interact through population
// columns, value pipelines, and the phase listeners they register.
package sim
