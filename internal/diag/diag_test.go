package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Debug("walking", "package", "roscpp")
	r.Warn("unreleased dependency", "package", "foo")

	recs := r.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Level != log.DebugLevel || recs[0].Message != "walking" {
		t.Errorf("first record = %+v", recs[0])
	}
	if got := r.Warnings(); len(got) != 1 || got[0] != "unreleased dependency" {
		t.Errorf("Warnings() = %v", got)
	}
}

func TestOr(t *testing.T) {
	if Or(nil) != Discard {
		t.Error("Or(nil) should return Discard")
	}
	var r Recorder
	if Or(&r) != Sink(&r) {
		t.Error("Or() should return a non-nil sink unchanged")
	}
}

func TestLoggerIsSink(t *testing.T) {
	var buf bytes.Buffer
	var s Sink = log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	s.Warn("tarball host not recognized", "repo", "ros_comm")
	if !strings.Contains(buf.String(), "tarball host not recognized") {
		t.Errorf("logger output = %q", buf.String())
	}
}
