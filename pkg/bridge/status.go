package bridge

// keys written back by the bridge container
const (
	KeyID         = "id"
	KeyJobStatus  = "jobStatus"
	KeyStartTime  = "startTime"
	KeyEndTime    = "endTime"
	KeySubmitTime = "submitTime"
	KeyMessage    = "message"

	// set by operators. "true" asks the bridge container to cancel.
	KeyKill = "kill"
)

// State of a job on the external resource.
type State string

const (
	Submitted  State = "SUBMITTED"
	Pending    State = "PENDING"
	Running    State = "RUNNING"
	Completing State = "COMPLETING"
	Completed  State = "COMPLETED"
	Cancelled  State = "CANCELLED"
	Failed     State = "FAILED"
	Unknown    State = "UNKNOWN"
)

// Finished tells the state will not change anymore.
func (s State) Finished() bool {
	switch s {
	case Completed, Cancelled, Failed:
		return true
	default:
		return false
	}
}

// Status is a view of the bridge ConfigMap, as the bridge container reports.
//
// Fields not reported yet are empty.
type Status struct {
	ID            string `yaml:"id,omitempty"`
	State         State  `yaml:"jobStatus,omitempty"`
	SubmitTime    string `yaml:"submitTime,omitempty"`
	StartTime     string `yaml:"startTime,omitempty"`
	EndTime       string `yaml:"endTime,omitempty"`
	Message       string `yaml:"message,omitempty"`
	KillRequested bool   `yaml:"kill"`
}

// Finished tells the job on the external resource is over.
func (s Status) Finished() bool {
	return s.State.Finished()
}

// StatusOf reads Status from ConfigMap data.
func StatusOf(data map[string]string) Status {
	return Status{
		ID:            data[KeyID],
		State:         State(data[KeyJobStatus]),
		SubmitTime:    data[KeySubmitTime],
		StartTime:     data[KeyStartTime],
		EndTime:       data[KeyEndTime],
		Message:       data[KeyMessage],
		KillRequested: data[KeyKill] == "true",
	}
}
