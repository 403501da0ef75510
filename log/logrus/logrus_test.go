package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unkn0wn-root/servicetools"
)

func TestLevelsAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Info("get from source", servicetools.Fields{"_": "abc123"})
	last := hook.LastEntry()
	if last.Level != logrus.InfoLevel || last.Message != "get from source" || last.Data["_"] != "abc123" {
		t.Fatalf("unexpected entry: %+v", last)
	}

	l.Emergency(`service "soap" is not configured`, nil)
	last = hook.LastEntry()
	if last.Level != logrus.ErrorLevel || last.Data["severity"] != "emergency" {
		t.Fatalf("emergency should log at error with severity tag: %+v", last)
	}
	if n := len(hook.AllEntries()); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
}
