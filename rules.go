package main

import (
	"log"
	"regexp"
	"strconv"
	"strings"
)

var bareNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// ApplyRules runs the deterministic post-processing pass over the complete
// merged field map. Order matters: every earlier rule can introduce new YES
// values, so the zero-evidence gate runs last and is authoritative.
func ApplyRules(schema *Schema, values map[string]string, evidenceText string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}

	normalizeBooleans(schema, out)
	applySingleSelectGroups(schema, out)
	applyUnitNormalization(schema, out)
	applyCompositePropagation(schema, out)
	applyRateFormatting(schema, out)
	applyImpliedDefaults(schema, out)
	applyInterlocks(schema, out)
	applySingleSelectGroups(schema, out)
	applyZeroEvidenceGate(schema, out, evidenceText)
	return out
}

// Rule 1: boolean fields are exactly "YES" or "NO".
func normalizeBooleans(schema *Schema, values map[string]string) {
	for _, key := range schema.Keys {
		if !schema.Fields[key].IsBoolean() {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(values[key]), "YES") {
			values[key] = "YES"
		} else {
			values[key] = "NO"
		}
	}
}

// Rules 2 and 8: at most one YES per declared single-select group. The
// priority list wins; without one, the first member in declared order does.
func applySingleSelectGroups(schema *Schema, values map[string]string) {
	for _, group := range schema.Rules.SingleSelectGroups {
		var yes []string
		for _, f := range group.Fields {
			if values[f] == "YES" {
				yes = append(yes, f)
			}
		}
		if len(yes) <= 1 {
			continue
		}
		winner := yes[0]
		for _, p := range group.Priority {
			if values[p] == "YES" {
				winner = p
				break
			}
		}
		for _, f := range yes {
			if f != winner {
				values[f] = "NO"
			}
		}
		log.Printf("rules single-select group=%s winner=%s cleared=%d", group.Name, winner, len(yes)-1)
	}
}

// voltageBand maps a numeric voltage onto the nearest standard band.
func voltageBand(v float64) string {
	switch {
	case v > 100 && v < 130:
		return "110-120V"
	case v > 200 && v < 250:
		return "208-240V"
	case v > 380 && v < 420:
		return "380-400V"
	case v > 460 && v < 490:
		return "460-480V"
	}
	return ""
}

// Rule 3: bare numeric voltage/frequency/pressure values get units.
func applyUnitNormalization(schema *Schema, values map[string]string) {
	uf := schema.Rules.UnitFields

	if key := uf.Voltage; key != "" {
		if v := strings.TrimSpace(values[key]); bareNumberRe.MatchString(v) {
			n, _ := strconv.ParseFloat(v, 64)
			if band := voltageBand(n); band != "" {
				values[key] = band
			} else {
				values[key] = v + "V"
			}
		}
	}
	if key := uf.Frequency; key != "" {
		if v := strings.TrimSpace(values[key]); bareNumberRe.MatchString(v) {
			values[key] = v + " Hz"
		}
	}
	if key := uf.Pressure; key != "" {
		v := strings.TrimSpace(values[key])
		if bareNumberRe.MatchString(v) {
			values[key] = v + " PSI"
		}
	}
}

// Rule 4: multi-indicator sets. Two member YES values, or a YES aggregate,
// force every member to YES.
func applyCompositePropagation(schema *Schema, values map[string]string) {
	for _, set := range schema.Rules.CompositeSets {
		yes := 0
		for _, m := range set.Members {
			if values[m] == "YES" {
				yes++
			}
		}
		if yes < 2 && !(set.Aggregate != "" && values[set.Aggregate] == "YES") {
			continue
		}
		for _, m := range set.Members {
			values[m] = "YES"
		}
		if set.Aggregate != "" {
			values[set.Aggregate] = "YES"
		}
	}
}

// Rule 5: bare numeric rates get a unit suffix, picked by context keyword
// when one matches the field key.
func applyRateFormatting(schema *Schema, values map[string]string) {
	for _, rf := range schema.Rules.RateFields {
		v := strings.TrimSpace(values[rf.Field])
		if !bareNumberRe.MatchString(v) {
			continue
		}
		unit := rf.DefaultUnit
		keyLower := strings.ToLower(rf.Field)
		for _, cu := range rf.ContextUnits {
			if strings.Contains(keyLower, strings.ToLower(cu.Keyword)) {
				unit = cu.Unit
				break
			}
		}
		if unit != "" {
			values[rf.Field] = v + " " + unit
		}
	}
}

// Rule 6: a YES parent with no YES child gets the declared preferred child.
func applyImpliedDefaults(schema *Schema, values map[string]string) {
	for _, d := range schema.Rules.ImpliedDefaults {
		if values[d.Parent] != "YES" {
			continue
		}
		anyYes := false
		for _, c := range d.Children {
			if values[c] == "YES" {
				anyYes = true
				break
			}
		}
		if !anyYes && d.Preferred != "" {
			values[d.Preferred] = "YES"
			log.Printf("rules implied-default parent=%s child=%s", d.Parent, d.Preferred)
		}
	}
}

// Rule 7: safety/compliance triggers force their required and incompatible
// sets.
func applyInterlocks(schema *Schema, values map[string]string) {
	for _, il := range schema.Rules.Interlocks {
		if values[il.Trigger] != "YES" {
			continue
		}
		for _, f := range il.Required {
			values[f] = "YES"
		}
		for _, f := range il.Incompatible {
			values[f] = "NO"
		}
	}
}

// Rule 9: every remaining YES must have at least one declared positive
// indicator literally present in the evidence. Fields declaring none are a
// schema gap and pass with a warning.
func applyZeroEvidenceGate(schema *Schema, values map[string]string, evidenceText string) {
	evidence := strings.ToLower(evidenceText)
	flipped := 0
	for _, key := range schema.Keys {
		spec := schema.Fields[key]
		if !spec.IsBoolean() || values[key] != "YES" {
			continue
		}
		if len(spec.PositiveIndicators) == 0 {
			log.Printf("rules zero-evidence skipped field=%s: no positive indicators declared", key)
			continue
		}
		found := false
		for _, ind := range spec.PositiveIndicators {
			if strings.Contains(evidence, strings.ToLower(ind)) {
				found = true
				break
			}
		}
		if !found {
			values[key] = "NO"
			flipped++
		}
	}
	if flipped > 0 {
		log.Printf("rules zero-evidence flipped=%d", flipped)
	}
}
