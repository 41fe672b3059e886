package proctor

import (
	"math"
	"time"
)

// Face remarks and head pose status texts
const (
	FaceRemarkNormal    = "Face detection normal"
	HeadPoseNormal      = "Head Position Normal"
	HeadPoseAway        = "Head Turned Away"
	HeadPoseUnavailable = "Head Pose Unavailable"
	HeadPoseNoFace      = "No face detected"
)

// FrameState owns the per-condition state machines that persist across
// frames. The session holds exactly one and passes it to every Aggregate call.
type FrameState struct {
	HeadPose *PersistenceFilter
	Gaze     *DwellTracker
}

// NewFrameState creates fresh state machines for cfg
func NewFrameState(cfg Config) *FrameState {
	return &FrameState{
		HeadPose: NewPersistenceFilter(cfg.HeadPosePersistence),
		Gaze:     NewDwellTracker(cfg.Regions, cfg.GazeDwellThreshold),
	}
}

// FrameResult is the full per-frame evaluation
type FrameResult struct {
	Timestamp time.Time `json:"timestamp"`

	FaceCount  int    `json:"face_count"`
	FaceRemark string `json:"face_remark"`

	Objects           []DetectedObject `json:"objects,omitempty"`
	SuspiciousObjects []string         `json:"suspicious_objects,omitempty"`

	HeadPose       *HeadPose `json:"head_pose,omitempty"`
	HeadPoseStatus string    `json:"head_pose_status"`
	HeadAwayFrames int       `json:"head_away_frames"`

	Gaze *GazeStatus `json:"gaze,omitempty"`

	Violations ViolationSet `json:"violations"`
}

// Aggregator turns a Snapshot into the frame's candidate violations.
// It holds configuration only; all mutable state lives in FrameState.
type Aggregator struct {
	cfg        Config
	suspicious map[string]bool
}

// NewAggregator creates an aggregator for cfg
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg, suspicious: cfg.suspiciousSet()}
}

// Aggregate evaluates one snapshot. Given identical snapshot and state it
// produces identical output.
func (a *Aggregator) Aggregate(snap Snapshot, st *FrameState) FrameResult {
	snap.Normalize()

	res := FrameResult{
		Timestamp:      snap.Timestamp,
		FaceCount:      snap.FaceCount,
		Objects:        snap.Objects,
		HeadPoseStatus: HeadPoseNoFace,
	}

	// Face count policy
	switch {
	case snap.FaceCount == 0:
		res.FaceRemark = MsgNoFace
		res.Violations.Add(MsgNoFace)
	case snap.FaceCount > 1:
		res.FaceRemark = MsgMultipleFaces
		res.Violations.Add(MsgMultipleFaces)
	default:
		res.FaceRemark = FaceRemarkNormal
	}

	// Object policy runs regardless of faces
	for _, obj := range snap.Objects {
		if a.suspicious[obj.Label] {
			res.SuspiciousObjects = append(res.SuspiciousObjects, obj.Label)
		}
	}
	if len(res.SuspiciousObjects) > 0 {
		res.Violations.Add(SuspiciousObjectsMessage(res.SuspiciousObjects))
	}

	if snap.FaceCount != 1 {
		// No single face: nothing to pose or gaze-track
		st.HeadPose.Reset()
		st.Gaze.Reset()
		return res
	}

	// Head pose persistence
	if snap.Pose == nil {
		// Unavailable counts as neutral and must not carry a stale run forward
		st.HeadPose.Reset()
		res.HeadPoseStatus = HeadPoseUnavailable
	} else {
		pose := *snap.Pose
		res.HeadPose = &pose
		away := a.turnedAway(pose)
		res.HeadPoseStatus = HeadPoseNormal
		if away {
			res.HeadPoseStatus = HeadPoseAway
		}
		if st.HeadPose.Update(away) {
			res.Violations.Add(MsgHeadTurnedAway)
		}
	}
	res.HeadAwayFrames = st.HeadPose.Count()

	// Gaze dwell
	gaze, violations := st.Gaze.Evaluate(snap.Gaze, snap.FrameWidth, snap.FrameHeight, snap.Timestamp)
	res.Gaze = &gaze
	for _, v := range violations {
		res.Violations.Add(v)
	}

	return res
}

func (a *Aggregator) turnedAway(p HeadPose) bool {
	return math.Abs(p.Yaw) > a.cfg.YawThreshold || math.Abs(p.Pitch) > a.cfg.PitchThreshold
}
