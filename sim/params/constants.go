package params

import "time"

// Cause model durations in days. Causes whose duration exceeds the early
// neonatal age bin effectively never remit within it, so duration inside
// that bin is half the bin width.
const (
	DiarrheaDuration           = 10.0
	MeaslesDuration            = 10.0
	LRIDuration                = 10.0
	EarlyNeonatalCauseDuration = 3.5
)

// Wasting transition model parameters. Recovery times are in days and the
// treated times differ for simulants under six months of age.
const (
	WastingStartAge = 0.5

	SAMTxRecoveryTimeOver6mo  = 48.3
	SAMTxRecoveryTimeUnder6mo = 13.3
	MAMTxRecoveryTimeOver6mo  = 41.3
	MAMTxRecoveryTimeUnder6mo = 13.3
	MAMUxRecoveryTime         = 70.0
	MildWastingUxRecoveryTime = 365.0
)

var (
	BaselineTxCoverage    = Var{Seed: "wasting_treatment_coverage", Dist: Normal{Mean: 0.488, Lower: 0.374, Upper: 0.604}}
	BaselineSAMTxEfficacy = Var{Seed: "sam_tx_efficacy", Dist: Normal{Mean: 0.700, Lower: 0.64, Upper: 0.76}}
	BaselineMAMTxEfficacy = Var{Seed: "mam_tx_efficacy", Dist: Normal{Mean: 0.731, Lower: 0.585, Upper: 0.877}}
	SAMK                  = Var{Seed: "sam_k", Dist: Lognormal{Median: 6.7, Lower: 5.3, Upper: 8.4}}
)

// AlternativeTxCoverage is the total treatment coverage the alternative
// scenarios scale up to.
const AlternativeTxCoverage = 0.7

// SQ-LNS prevention parameters. Coverage is decided by comparing a
// propensity against the scenario coverage level once a simulant reaches
// the start age.
const (
	SQLNSCoverageStartAge = 0.5
	SQLNSCoverageBaseline = 0.0
	SQLNSCoverageRampUp   = 0.9
)

var (
	SQLNSSevereWastingRR   = Var{Seed: "sq_lns_severe_wasting_effect", Dist: Lognormal{Median: 0.85, Lower: 0.74, Upper: 0.98}}
	SQLNSModerateWastingRR = Var{Seed: "sq_lns_moderate_wasting_effect", Dist: Lognormal{Median: 0.82, Lower: 0.74, Upper: 0.91}}
)

// ScaleUpStartDate is when intervention scale-up begins in the alternative
// scenarios. Before this date alternative scenarios behave like baseline.
var ScaleUpStartDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
