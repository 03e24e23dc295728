package models

import "time"

// JobStatus is the overall status of an analysis job.
type JobStatus string

const (
	JobStatusUploading  JobStatus = "uploading"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// StepStatus is the status of a single processing step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusComplete   StepStatus = "complete"
	StepStatusError      StepStatus = "error"
)

// Step indexes, in execution order.
const (
	StepIngest = iota
	StepPreprocess
	StepAnalyze

	StepCount
)

var stepNames = [StepCount]string{"upload", "preprocessing", "analysis"}

// Step is one fixed phase of a job.
type Step struct {
	Name     string     `json:"step"`
	Status   StepStatus `json:"status"`
	Message  string     `json:"message"`
	Progress float64    `json:"progress"`
}

// State is the observable progress of a job. Progress is derived from Steps.
type State struct {
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Steps     []Step    `json:"steps"`
}

// Job tracks one analysis request. The API returns it from POST /analyze/upload;
// clients poll GET /analysis/{id} until status is complete or error.
type Job struct {
	ID      string           `json:"id"`
	State   State            `json:"state"`
	Results []AnalysisResult `json:"results"`
}

// NewJob returns a job in the uploading state with all steps pending.
func NewJob(id string, now time.Time) *Job {
	steps := make([]Step, StepCount)
	for i := range steps {
		steps[i] = Step{Name: stepNames[i], Status: StepStatusPending, Message: "Waiting to start"}
	}
	return &Job{
		ID: id,
		State: State{
			Status:    JobStatusUploading,
			Message:   "Starting upload",
			Timestamp: now,
			Steps:     steps,
		},
	}
}

// IsDone reports whether the job reached a terminal state.
func (j *Job) IsDone() bool {
	return j.State.Status == JobStatusComplete || j.State.Status == JobStatusError
}

// Recompute sets overall progress to the mean of step progress.
func (s *State) Recompute() {
	if len(s.Steps) == 0 {
		return
	}
	var sum float64
	for _, st := range s.Steps {
		sum += st.Progress
	}
	s.Progress = sum / float64(len(s.Steps))
}

// Clone returns a deep copy safe to hand out to concurrent readers.
func (j *Job) Clone() *Job {
	c := *j
	c.State.Steps = append([]Step(nil), j.State.Steps...)
	if j.Results != nil {
		c.Results = make([]AnalysisResult, len(j.Results))
		for i := range j.Results {
			c.Results[i] = j.Results[i].Clone()
		}
	}
	return &c
}
