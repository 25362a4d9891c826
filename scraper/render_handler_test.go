package scraper

import (
	"testing"
	"time"
)

func TestRenderSteps_StealthBeforeNavigation(t *testing.T) {
	var html string
	steps := renderSteps(fixtureURL, time.Second, &html)

	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.action == nil {
			t.Errorf("step %q has no action", s.name)
		}
		index[s.name] = i
	}

	for _, name := range []string{"headers", "init script", "navigate", "snapshot"} {
		if _, ok := index[name]; !ok {
			t.Fatalf("missing step %q in %v", name, index)
		}
	}
	if index["init script"] > index["navigate"] {
		t.Error("init script must be registered before navigation")
	}
	if index["headers"] > index["navigate"] {
		t.Error("headers must be set before navigation")
	}
	if steps[len(steps)-1].name != "snapshot" {
		t.Errorf("last step = %q, want snapshot", steps[len(steps)-1].name)
	}
}
