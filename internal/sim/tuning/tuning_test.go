package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := `
world:
  width: 64
  chunk_size: 16
sim:
  notify_policy: sticky
  strengths:
    cable: 250
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.World.Width != 64 || tu.World.ChunkSize != 16 {
		t.Fatalf("world=%+v", tu.World)
	}
	if tu.World.Height != 256 || tu.Sim.TickRateHz != 20 {
		t.Fatalf("defaults lost: %+v %+v", tu.World, tu.Sim)
	}
	if tu.Sim.NotifyPolicy != NotifySticky {
		t.Fatalf("notify_policy=%q", tu.Sim.NotifyPolicy)
	}
	if got := tu.Sim.Strength("cable"); got != 250 {
		t.Fatalf("cable strength=%v", got)
	}
	if got := tu.Sim.Strength("big_power"); got != 5000 {
		t.Fatalf("big_power strength=%v (yaml map replaced defaults?)", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("sim:\n  notify_policy: sometimes\n  belt_arm_slots: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "notify_policy") || !strings.Contains(err.Error(), "belt_arm_slots") {
		t.Fatalf("error should mention both fields: %v", err)
	}
}
