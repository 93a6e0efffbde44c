package main

import "testing"

const rulesSchemaYAML = `
fields:
  - key: voltage
    type: text
    section: Controls and Electrical
  - key: hz
    type: text
    section: Controls and Electrical
  - key: air_pressure
    type: text
  - key: line_speed
    type: text
  - key: screen_7_check
    positive_indicators: ["7 inch screen"]
  - key: screen_10_check
    positive_indicators: ["10 inch screen"]
  - key: screen_15_check
    positive_indicators: ["15 inch screen"]
  - key: beacon_red_check
    positive_indicators: ["red beacon"]
  - key: beacon_green_check
    positive_indicators: ["green beacon"]
  - key: beacon_amber_check
    positive_indicators: ["amber beacon"]
  - key: multi_color_beacon_check
    positive_indicators: ["multi-color beacon", "red beacon", "green beacon"]
  - key: filling_system_check
    positive_indicators: ["filling system"]
  - key: volumetric_fill_check
    positive_indicators: ["volumetric", "filling system"]
  - key: peristaltic_fill_check
    positive_indicators: ["peristaltic"]
  - key: explosion_proof_check
    positive_indicators: ["explosion proof", "atex"]
  - key: pneumatic_drive_check
    positive_indicators: ["pneumatic", "explosion proof"]
  - key: servo_drive_check
    positive_indicators: ["servo"]
  - key: cooling_system_check
    positive_indicators: ["cooling system", "chiller"]
rules:
  unit_fields:
    voltage: voltage
    frequency: hz
    pressure: air_pressure
  single_select_groups:
    - name: screen_size
      fields: [screen_7_check, screen_10_check, screen_15_check]
      priority: [screen_15_check, screen_10_check, screen_7_check]
  composite_sets:
    - name: beacon
      aggregate: multi_color_beacon_check
      members: [beacon_red_check, beacon_green_check, beacon_amber_check]
  rate_fields:
    - field: line_speed
      default_unit: BPM
  implied_defaults:
    - parent: filling_system_check
      children: [volumetric_fill_check, peristaltic_fill_check]
      preferred: volumetric_fill_check
  interlocks:
    - trigger: explosion_proof_check
      required: [pneumatic_drive_check]
      incompatible: [servo_drive_check]
`

func rulesSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseSchema([]byte(rulesSchemaYAML))
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}
	return s
}

func baseValues(s *Schema) map[string]string {
	values := make(map[string]string, len(s.Keys))
	for _, key := range s.Keys {
		values[key] = s.Fields[key].DefaultValue()
	}
	return values
}

func TestRules_ZeroEvidenceGate(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["cooling_system_check"] = "YES"

	got := ApplyRules(s, values, "quote text mentions neither term")
	if got["cooling_system_check"] != "NO" {
		t.Fatalf("ungrounded YES should flip to NO, got %q", got["cooling_system_check"])
	}

	got = ApplyRules(s, values, "includes a chiller for the jacket")
	if got["cooling_system_check"] != "YES" {
		t.Fatalf("grounded YES should survive, got %q", got["cooling_system_check"])
	}
}

func TestRules_SingleSelectPriority(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["screen_7_check"] = "YES"
	values["screen_10_check"] = "YES"
	values["screen_15_check"] = "YES"

	evidence := "7 inch screen, 10 inch screen, 15 inch screen all quoted"
	got := ApplyRules(s, values, evidence)

	if got["screen_15_check"] != "YES" {
		t.Errorf("priority winner cleared: %q", got["screen_15_check"])
	}
	if got["screen_7_check"] != "NO" || got["screen_10_check"] != "NO" {
		t.Errorf("losers kept YES: 7=%q 10=%q", got["screen_7_check"], got["screen_10_check"])
	}

	yes := 0
	for _, f := range []string{"screen_7_check", "screen_10_check", "screen_15_check"} {
		if got[f] == "YES" {
			yes++
		}
	}
	if yes > 1 {
		t.Fatalf("mutual exclusivity violated: %d YES", yes)
	}
}

func TestRules_VoltageBands(t *testing.T) {
	s := rulesSchema(t)
	tests := []struct{ in, want string }{
		{"110", "110-120V"},
		{"120", "110-120V"},
		{"230", "208-240V"},
		{"400", "380-400V"},
		{"461", "460-480V"},
		{"480", "460-480V"},
		{"460", "460V"}, // band bounds are exclusive
		{"490", "490V"},
		{"575", "575V"},
		{"460V", "460V"}, // already carries a unit
	}
	for _, tt := range tests {
		values := baseValues(s)
		values["voltage"] = tt.in
		got := ApplyRules(s, values, "")
		if got["voltage"] != tt.want {
			t.Errorf("voltage %q -> %q, want %q", tt.in, got["voltage"], tt.want)
		}
	}
}

func TestRules_FrequencyAndPressureSuffixes(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["hz"] = "60"
	values["air_pressure"] = "90"

	got := ApplyRules(s, values, "")
	if got["hz"] != "60 Hz" {
		t.Errorf("hz = %q", got["hz"])
	}
	if got["air_pressure"] != "90 PSI" {
		t.Errorf("air_pressure = %q", got["air_pressure"])
	}

	values["air_pressure"] = "6 bar"
	got = ApplyRules(s, values, "")
	if got["air_pressure"] != "6 bar" {
		t.Errorf("existing unit should be kept, got %q", got["air_pressure"])
	}
}

func TestRules_CompositePropagation(t *testing.T) {
	s := rulesSchema(t)
	evidence := "red beacon and green beacon and amber beacon, multi-color beacon stack"

	// Two member YES values force the whole set.
	values := baseValues(s)
	values["beacon_red_check"] = "YES"
	values["beacon_green_check"] = "YES"
	got := ApplyRules(s, values, evidence)
	for _, f := range []string{"beacon_red_check", "beacon_green_check", "beacon_amber_check", "multi_color_beacon_check"} {
		if got[f] != "YES" {
			t.Errorf("%s = %q after two-member propagation", f, got[f])
		}
	}

	// A YES aggregate does the same.
	values = baseValues(s)
	values["multi_color_beacon_check"] = "YES"
	got = ApplyRules(s, values, evidence)
	if got["beacon_amber_check"] != "YES" {
		t.Errorf("aggregate YES should force members, amber = %q", got["beacon_amber_check"])
	}

	// A single member does not.
	values = baseValues(s)
	values["beacon_red_check"] = "YES"
	got = ApplyRules(s, values, evidence)
	if got["beacon_green_check"] != "NO" {
		t.Errorf("single member should not propagate, green = %q", got["beacon_green_check"])
	}
}

func TestRules_RateFormatting(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["line_speed"] = "120"

	got := ApplyRules(s, values, "")
	if got["line_speed"] != "120 BPM" {
		t.Errorf("line_speed = %q", got["line_speed"])
	}

	values["line_speed"] = "120 BPM"
	got = ApplyRules(s, values, "")
	if got["line_speed"] != "120 BPM" {
		t.Errorf("already-suffixed rate changed: %q", got["line_speed"])
	}
}

func TestRules_ImpliedDefault(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["filling_system_check"] = "YES"

	got := ApplyRules(s, values, "complete filling system with volumetric pump")
	if got["volumetric_fill_check"] != "YES" {
		t.Errorf("preferred child not set, got %q", got["volumetric_fill_check"])
	}

	// An explicit child suppresses the default.
	values = baseValues(s)
	values["filling_system_check"] = "YES"
	values["peristaltic_fill_check"] = "YES"
	got = ApplyRules(s, values, "filling system with peristaltic pump")
	if got["volumetric_fill_check"] != "NO" {
		t.Errorf("default applied despite explicit child, got %q", got["volumetric_fill_check"])
	}
}

func TestRules_SafetyInterlock(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["explosion_proof_check"] = "YES"
	values["servo_drive_check"] = "YES"

	got := ApplyRules(s, values, "explosion proof construction, pneumatic drive, servo option")
	if got["pneumatic_drive_check"] != "YES" {
		t.Errorf("required field not forced, got %q", got["pneumatic_drive_check"])
	}
	if got["servo_drive_check"] != "NO" {
		t.Errorf("incompatible field kept YES, got %q", got["servo_drive_check"])
	}
}

func TestRules_BooleanNormalization(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["cooling_system_check"] = "yes"

	got := ApplyRules(s, values, "chiller included")
	if got["cooling_system_check"] != "YES" {
		t.Errorf("lowercase yes should normalize, got %q", got["cooling_system_check"])
	}

	values["cooling_system_check"] = "maybe"
	got = ApplyRules(s, values, "chiller included")
	if got["cooling_system_check"] != "NO" {
		t.Errorf("non-boolean value should become NO, got %q", got["cooling_system_check"])
	}
}

func TestRules_InputNotMutated(t *testing.T) {
	s := rulesSchema(t)
	values := baseValues(s)
	values["hz"] = "60"

	_ = ApplyRules(s, values, "")
	if values["hz"] != "60" {
		t.Fatalf("input map mutated: hz = %q", values["hz"])
	}
}
