// Package metrics defines the tracker's observability hooks and a Prometheus
// implementation of them.
package metrics

// CommitResult labels the outcome of a ledger commit.
type CommitResult string

const (
	CommitSuccess CommitResult = "success"
	CommitFailed  CommitResult = "failed"
)

// Recorder receives tracker events. Implementations may forward to
// Prometheus or elsewhere; NoopRecorder is the default when metrics are off.
type Recorder interface {
	IncSignal(kind string)
	IncCommit(result CommitResult)
	AddCommittedSeconds(seconds float64)
	SetTracking(active bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncSignal(string)            {}
func (NoopRecorder) IncCommit(CommitResult)      {}
func (NoopRecorder) AddCommittedSeconds(float64) {}
func (NoopRecorder) SetTracking(bool)            {}
