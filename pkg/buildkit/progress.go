package buildkit

import log "github.com/sirupsen/logrus"

// VertexState reports one build-graph node's progress, as relayed by the
// Status stream (spec.md §4.6).
type VertexState struct {
	ID        string
	Name      string
	Started   bool
	Completed bool
	Error     string
	Cached    bool
}

// Stat carries one numeric sample from the daemon's status stream, e.g.
// bytes transferred for a cache import.
type Stat struct {
	Name  string
	Value float64
}

// ProgressSink is the abstract contract the control client's status reader
// drives (spec.md §4.6). Implementations must be safe to call concurrently
// from the status reader task; ordering within a single vertex id is
// preserved by the caller, cross-vertex ordering is not guaranteed.
type ProgressSink interface {
	OnVertex(state VertexState)
	OnLog(vertexID string, line []byte)
	OnStat(stat Stat)
	Finish(result *Result, err error)
}

// LogrusSink is the default sink: it renders every event as a structured
// logrus entry, matching the teacher's WithFields-per-event logging style.
type LogrusSink struct {
	log *log.Entry
}

// NewLogrusSink builds a sink logging through the package-level logrus
// logger, tagged with a "component" field the way the teacher's server
// components tag their own entries.
func NewLogrusSink() *LogrusSink {
	return &LogrusSink{log: log.WithField("component", "solve")}
}

// OnVertex implements ProgressSink.
func (s *LogrusSink) OnVertex(v VertexState) {
	entry := s.log.WithFields(log.Fields{
		"vertex": v.ID,
		"name":   v.Name,
		"cached": v.Cached,
	})
	switch {
	case v.Error != "":
		entry.WithField("error", v.Error).Error("vertex failed")
	case v.Completed:
		entry.Debug("vertex completed")
	case v.Started:
		entry.Debug("vertex started")
	}
}

// OnLog implements ProgressSink.
func (s *LogrusSink) OnLog(vertexID string, line []byte) {
	s.log.WithField("vertex", vertexID).Debug(string(line))
}

// OnStat implements ProgressSink.
func (s *LogrusSink) OnStat(stat Stat) {
	s.log.WithFields(log.Fields{"stat": stat.Name, "value": stat.Value}).Trace("stat")
}

// Finish implements ProgressSink.
func (s *LogrusSink) Finish(result *Result, err error) {
	if err != nil {
		s.log.WithError(err).Error("build failed")
		return
	}
	s.log.WithField("digest", result.ImageDigest).Info("build finished")
}

// SilentSink discards every event. RunBuild uses it when BuildOptions.Sink
// is nil.
type SilentSink struct{}

func (SilentSink) OnVertex(VertexState)  {}
func (SilentSink) OnLog(string, []byte)  {}
func (SilentSink) OnStat(Stat)           {}
func (SilentSink) Finish(*Result, error) {}

var (
	_ ProgressSink = (*LogrusSink)(nil)
	_ ProgressSink = SilentSink{}
)
