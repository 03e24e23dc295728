package store

import (
	"fmt"

	"github.com/kiranshivaraju/videolens/pkg/models"
)

// SetStep updates one step and refreshes the overall state: progress becomes
// the mean of all step progress, message becomes message, timestamp is now.
//
// Step progress never moves backwards except when the step enters the error
// status. Progress is clamped to [0, 1].
func (s *MemoryStore) SetStep(id string, index int, status models.StepStatus, progress float64, message string) (*models.Job, error) {
	if index < 0 || index >= models.StepCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStepIndex, index)
	}
	return s.Update(id, func(job *models.Job) {
		applyStep(&job.State.Steps[index], status, progress, message)
		job.State.Message = message
	})
}

func applyStep(st *models.Step, status models.StepStatus, progress float64, message string) {
	progress = clamp01(progress)
	if status != models.StepStatusError && progress < st.Progress {
		progress = st.Progress
	}
	st.Status = status
	st.Progress = progress
	st.Message = message
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
