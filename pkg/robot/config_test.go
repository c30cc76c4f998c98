package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gwillem/replaybot/pkg/control"
)

func TestConfig_SaveLoad(t *testing.T) {
	for _, name := range []string{"replaybot.json", "replaybot.yaml"} {
		path := filepath.Join(t.TempDir(), name)

		cfg := DefaultConfig()
		cfg.Arm = ArmConfig{
			Port:        "/dev/ttyACM0",
			Calibration: ArmCalibration{ID: 1, HomingOffset: 2048, RangeMin: 1200, RangeMax: 3100},
		}
		cfg.Joystick.Device = "/dev/input/js0"
		cfg.Joystick.Buttons = map[string]int{"A": 0, "R2": 7}
		cfg.Trace = TraceConfig{Backend: BackendSQLite, Path: "traces.db", Name: "skills"}
		tuning := control.DefaultTuning()
		tuning.IdealAngle = 1800
		cfg.Tuning = &tuning

		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("%s: SaveTo error: %v", name, err)
		}
		got, err := LoadConfigFrom(path)
		if err != nil {
			t.Fatalf("%s: LoadConfigFrom error: %v", name, err)
		}

		if got.Arm != cfg.Arm {
			t.Errorf("%s: arm = %+v, want %+v", name, got.Arm, cfg.Arm)
		}
		if !got.Arm.IsCalibrated() {
			t.Errorf("%s: arm not calibrated", name)
		}
		if got.Joystick.Device != "/dev/input/js0" || got.Joystick.Buttons["R2"] != 7 {
			t.Errorf("%s: joystick = %+v", name, got.Joystick)
		}
		if got.Trace != cfg.Trace {
			t.Errorf("%s: trace = %+v", name, got.Trace)
		}
		if got.ControlTuning().IdealAngle != 1800 {
			t.Errorf("%s: tuning = %+v", name, got.ControlTuning())
		}
	}
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replaybot.json")
	if err := os.WriteFile(path, []byte(`{"arm": {"port": "/dev/ttyUSB0"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Period().Milliseconds() != 20 || cfg.SessionLength().Seconds() != 60 {
		t.Errorf("period=%v session=%v", cfg.Period(), cfg.SessionLength())
	}
	if cfg.Trace.Backend != BackendFile || cfg.Trace.Path != "recording.txt" {
		t.Errorf("trace = %+v", cfg.Trace)
	}
	if cfg.ControlTuning() != control.DefaultTuning() {
		t.Errorf("tuning = %+v, want defaults", cfg.ControlTuning())
	}
	if cfg.Arm.IsCalibrated() {
		t.Error("arm without calibration reports calibrated")
	}
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	tests := []string{
		`{"period_ms": 0}`,
		`{"period_ms": 20, "session_ms": 10}`,
		`{"trace": {"backend": "floppy"}}`,
		`not json`,
	}

	for _, content := range tests {
		path := filepath.Join(t.TempDir(), "replaybot.json")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFrom(path); err == nil {
			t.Errorf("LoadConfigFrom(%s) should fail", content)
		}
	}
}

func TestConfigExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replaybot.json")
	if ConfigExists(path) {
		t.Error("ConfigExists true before save")
	}
	if err := DefaultConfig().SaveTo(path); err != nil {
		t.Fatal(err)
	}
	if !ConfigExists(path) {
		t.Error("ConfigExists false after save")
	}
}
