package metrics

// Label values shared by metric sets.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultSkipped  = "skipped"
	ResultNone     = "none"
	ResultAccepted = "accepted"

	StageMotion   = "motion"
	StageDetect   = "detect"
	StageClassify = "classify"
	StageTrack    = "track"
	StageFinalize = "finalize"
	StageTick     = "tick"

	OpInsert      = "insert"
	OpUpdateClip  = "update_clip"
	OpGetSetting  = "get_setting"
	OpSetSetting  = "set_setting"
	OpList        = "list"
	OpDeleteOlder = "delete_older"
)

// Histogram buckets
var (
	// inferenceBuckets covers 1ms to ~4s
	inferenceBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 4}
	// encodeBuckets covers 100ms to ~100s
	encodeBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100}
	// dbBuckets covers 0.1ms to ~1s
	dbBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
)
