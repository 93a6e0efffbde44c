package main

import (
	"regexp"
	"strings"
)

// Default price threshold for machine detection. A quote row above this is
// treated as a machine even without a name keyword.
const DefaultPriceThreshold = 10000

// Keywords that mark a row as a main machine.
var machineIndicators = []string{
	"monoblock", "unscrambler", "sortstar", "filler", "capper",
	"labeler", "labelstar", "cartoner", "case packer",
}

// Leading words that mark a row as an add-on/option, never a machine.
var addOnIndicators = []string{
	"each", "option", "optional", "accessory", "add-on", "upgrade",
}

// Whole-word accessory markers. A "kit" or "spare" row is never a machine,
// however expensive (antistatic kits routinely cross the price threshold).
var addOnKeywords = []string{
	"kit", "spare", "upgrade", "accessory",
}

// Keywords for items shared across every machine on the quote.
var commonItemIndicators = []string{
	"warranty", "installation", "documentation", "training",
	"spare parts kit", "service", "maintenance", "validation",
	"shipping", "delivery",
}

var (
	modelSeriesRe = regexp.MustCompile(`\b(?:model|series)\s+[a-z0-9][a-z0-9-]*`)
	wordBoundRe   = map[string]*regexp.Regexp{}
)

func init() {
	all := append([]string{}, machineIndicators...)
	all = append(all, commonItemIndicators...)
	all = append(all, addOnKeywords...)
	for _, kw := range all {
		wordBoundRe[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	}
}

func matchesAny(descLower string, keywords []string) bool {
	for _, kw := range keywords {
		if re, ok := wordBoundRe[kw]; ok {
			if re.MatchString(descLower) {
				return true
			}
		} else if strings.Contains(descLower, kw) {
			return true
		}
	}
	return false
}

func leadsWithAny(descLower string, keywords []string) bool {
	first := descLower
	if idx := strings.IndexAny(first, " \t\n:,"); idx >= 0 {
		first = first[:idx]
	}
	for _, kw := range keywords {
		if first == kw {
			return true
		}
	}
	return false
}

func isCommonItem(it LineItem) bool {
	desc := strings.ToLower(it.Description)
	if desc == "" {
		return false
	}
	return leadsWithAny(desc, commonItemIndicators) || matchesAny(desc, commonItemIndicators)
}

func isCandidateMachine(it LineItem, threshold float64) bool {
	desc := strings.ToLower(it.Description)
	if desc == "" {
		return false
	}
	if leadsWithAny(desc, addOnIndicators) || matchesAny(desc, addOnKeywords) {
		return false
	}
	if matchesAny(desc, machineIndicators) {
		return true
	}
	if it.PriceNumeric > threshold {
		return true
	}
	if parseQuantity(it.QuantityText) == 1 && it.PriceNumeric > threshold/2 {
		return true
	}
	return modelSeriesRe.MatchString(desc)
}

// machineNameOf is the first line of the main item's description.
func machineNameOf(it LineItem) string {
	name := it.Description
	if idx := strings.IndexByte(name, '\n'); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// Classify partitions a quote's line items into machine groups and common
// items. Every input item lands in exactly one bucket. Deterministic: same
// items and threshold always produce the same grouping.
//
// Pass one finds candidate machines and common items; pass two assigns each
// remaining item to the nearest preceding machine. Items before the first
// machine fall through to common. Known limitation: when two machines are
// adjacent with no add-ons between them, later add-ons attach to the second
// machine regardless of which they belong to.
func Classify(items []LineItem, priceThreshold float64) Classification {
	if priceThreshold <= 0 {
		priceThreshold = DefaultPriceThreshold
	}

	var result Classification
	if len(items) == 0 {
		return result
	}

	parsed := make([]LineItem, len(items))
	for i, it := range items {
		if it.PriceNumeric == 0 {
			it.PriceNumeric = parsePrice(it.SelectionText)
		}
		parsed[i] = it
	}

	const (
		roleMachine = iota
		roleCommon
		roleAddOn
	)
	roles := make([]int, len(parsed))
	machineCount := 0
	for i, it := range parsed {
		switch {
		case isCommonItem(it):
			roles[i] = roleCommon
		case isCandidateMachine(it, priceThreshold):
			roles[i] = roleMachine
			machineCount++
		default:
			roles[i] = roleAddOn
		}
	}

	// No machine found: rescue the single highest-priced item if it costs
	// enough to plausibly be one, otherwise everything is common. Items
	// already classified as common stay common; a $5,000 installation row
	// is not a machine no matter what else is on the quote.
	if machineCount == 0 {
		best, bestPrice := -1, 0.0
		for i, it := range parsed {
			if roles[i] == roleCommon {
				continue
			}
			if it.PriceNumeric > bestPrice {
				best, bestPrice = i, it.PriceNumeric
			}
		}
		if best >= 0 && bestPrice > 1000 {
			roles[best] = roleMachine
		} else {
			result.CommonItems = append(result.CommonItems, parsed...)
			return result
		}
	}

	lastMachine := -1
	for i, it := range parsed {
		switch roles[i] {
		case roleMachine:
			result.Machines = append(result.Machines, MachineGroup{
				MachineName: machineNameOf(it),
				MainItem:    it,
			})
			lastMachine = len(result.Machines) - 1
		case roleCommon:
			result.CommonItems = append(result.CommonItems, it)
		default:
			if lastMachine >= 0 {
				m := &result.Machines[lastMachine]
				m.AddOns = append(m.AddOns, it)
			} else {
				result.CommonItems = append(result.CommonItems, it)
			}
		}
	}
	return result
}
