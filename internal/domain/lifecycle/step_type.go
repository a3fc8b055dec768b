package lifecycle

import "strings"

// StepType tags what happened to a tracked product.
type StepType string

const (
	StepPurchased   StepType = "purchased"
	StepMalfunction StepType = "malfunction"
	StepRepaired    StepType = "repaired"
	StepMaintained  StepType = "maintained"
	StepUpgraded    StepType = "upgraded"
	StepWorking     StepType = "working"
	StepSold        StepType = "sold"
	StepGifted      StepType = "gifted"
	StepRecycled    StepType = "recycled"
	StepDisposed    StepType = "disposed"
	StepEcoAnalysis StepType = "eco_analysis"
	StepNote        StepType = "note"
	StepOther       StepType = "other"
)

var defaultPriority = map[StepType]int{
	StepPurchased:   7,
	StepMalfunction: 8,
	StepRepaired:    8,
	StepMaintained:  5,
	StepUpgraded:    6,
	StepWorking:     3,
	StepSold:        8,
	StepGifted:      8,
	StepRecycled:    9,
	StepDisposed:    9,
	StepEcoAnalysis: 6,
	StepNote:        3,
	StepOther:       4,
}

var stepAliases = map[string]StepType{
	"broken":        StepMalfunction,
	"bought":        StepPurchased,
	"just_bought":   StepPurchased,
	"fixed":         StepRepaired,
	"cleaned":       StepMaintained,
	"maintenance":   StepMaintained,
	"modified":      StepUpgraded,
	"working_great": StepWorking,
	"thrown_away":   StepDisposed,
	"analysis":      StepEcoAnalysis,
}

// ParseStepType normalizes free-form input; unknown values map to StepOther.
func ParseStepType(raw string) StepType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(strings.ReplaceAll(key, "-", "_"), " ", "_")
	if key == "" {
		return StepOther
	}
	if _, ok := defaultPriority[StepType(key)]; ok {
		return StepType(key)
	}
	if t, ok := stepAliases[key]; ok {
		return t
	}
	return StepOther
}

// DefaultPriority is the 1-10 weight used when a caller does not supply one.
func (t StepType) DefaultPriority() int {
	if p, ok := defaultPriority[t]; ok {
		return p
	}
	return defaultPriority[StepOther]
}

// StepSource names who reported a step.
type StepSource string

const (
	SourceUser      StepSource = "user"
	SourceBot       StepSource = "bot"
	SourceSystem    StepSource = "system"
	SourceExtension StepSource = "extension"
)

func ParseStepSource(raw string) StepSource {
	switch s := StepSource(strings.ToLower(strings.TrimSpace(raw))); s {
	case SourceUser, SourceBot, SourceSystem, SourceExtension:
		return s
	default:
		return SourceUser
	}
}
