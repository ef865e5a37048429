package version

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColoredKeepsComponents(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	orig := Version
	defer func() { Version = orig }()

	Version = "1.2.3-rc1"
	if got := Colored(); got != "1.2.3-rc1" {
		t.Fatalf("Colored() = %q", got)
	}
	Version = "weird"
	if got := Colored(); got != "weird" {
		t.Fatalf("Colored() = %q", got)
	}
}

func TestInfoJSON(t *testing.T) {
	origCommit := GitCommit
	defer func() { GitCommit = origCommit }()
	GitCommit = "abc123"

	data, err := Current().JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back Info
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.GitCommit != "abc123" || back.WireFormat != WireFormat {
		t.Fatalf("round trip lost fields: %+v", back)
	}
	if strings.Contains(string(data), "build_date") {
		t.Fatalf("empty build date should be omitted:\n%s", data)
	}
}
