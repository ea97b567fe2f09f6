// Package pipeline drives ingestion of a local video: duplicate lookup,
// upload and analysis, subtitle generation and hand-off of the detected
// highlights to the editor.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sportcut/sportcut-agent/internal/cloud"
)

var ErrIllegalTransition = errors.New("illegal pipeline transition")

// Stage is a step of an ingestion run. Stages only move forward; Failed is
// reachable from any non-terminal stage.
type Stage int

const (
	Idle Stage = iota
	CheckingDuplicate
	Uploading
	Analyzing
	DetectingHighlights
	GeneratingSubtitles
	Finalizing
	Done
	Failed
)

var stageNames = [...]string{
	Idle:                "Idle",
	CheckingDuplicate:   "CheckingDuplicate",
	Uploading:           "Uploading",
	Analyzing:           "Analyzing",
	DetectingHighlights: "DetectingHighlights",
	GeneratingSubtitles: "GeneratingSubtitles",
	Finalizing:          "Finalizing",
	Done:                "Done",
	Failed:              "Failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// Terminal reports whether no further transition is allowed in this run.
func (s Stage) Terminal() bool {
	return s == Done || s == Failed
}

// Progress checkpoints, in percent.
const (
	ProgressCheckingDuplicate   = 5
	ProgressUploadStart         = 10
	ProgressUploadEnd           = 45
	ProgressAnalyzing           = 50
	ProgressDetectingHighlights = 70
	ProgressGeneratingSubtitles = 85
	ProgressFinalizing          = 95
	ProgressDone                = 100
)

// UploadProgress maps bytes sent onto the upload band of the progress bar.
func UploadProgress(sent, total int64) int {
	if total <= 0 {
		return ProgressUploadEnd
	}
	sent = max(0, min(sent, total))
	band := int64(ProgressUploadEnd - ProgressUploadStart)
	return ProgressUploadStart + int(sent*band/total)
}

// State is the observable status of the current run.
type State struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Start returns the first state of a new run, whatever the previous run did.
func Start() State {
	return State{Stage: CheckingDuplicate, Message: "checking for a previous analysis"}
}

// Advance moves to stage with the given progress. Moving backwards, moving
// out of a terminal stage, or targeting Idle or Failed is rejected; progress
// never decreases.
func (s State) Advance(stage Stage, progress int, message string) (State, error) {
	switch {
	case s.Stage.Terminal():
		return s, fmt.Errorf("%w: run already %s", ErrIllegalTransition, s.Stage)
	case stage == Idle || stage == Failed:
		return s, fmt.Errorf("%w: cannot advance to %s", ErrIllegalTransition, stage)
	case stage < s.Stage:
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Stage, stage)
	}

	progress = max(s.Progress, min(progress, ProgressDone))
	if stage == Done {
		progress = ProgressDone
	}
	return State{Stage: stage, Progress: progress, Message: message}, nil
}

// Fail ends the run with err. The progress reached so far is kept.
func (s State) Fail(err error) (State, error) {
	if s.Stage.Terminal() {
		return s, fmt.Errorf("%w: run already %s", ErrIllegalTransition, s.Stage)
	}
	next := State{Stage: Failed, Progress: s.Progress, Message: Cause(err)}
	if err != nil {
		next.Err = err.Error()
	}
	return next, nil
}

// Cause turns a run failure into the short reason shown to the user.
func Cause(err error) string {
	var apiErr *cloud.APIError
	switch {
	case err == nil:
		return "failed"
	case errors.Is(err, cloud.ErrNetwork):
		return "no network connection"
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 500:
		return fmt.Sprintf("server error (HTTP %d)", apiErr.StatusCode)
	case errors.As(err, &apiErr):
		return fmt.Sprintf("request rejected (HTTP %d)", apiErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}
