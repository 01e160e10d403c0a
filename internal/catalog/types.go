package catalog

// #region category
// Category groups processing units by the kind of signal shaping they perform.
type Category string

const (
	CategoryDynamics   Category = "dynamics"
	CategoryFilter     Category = "filter"
	CategoryDistortion Category = "distortion"
	CategoryModulation Category = "modulation"
	CategoryTimeDelay  Category = "time-delay"
	CategoryReverb     Category = "reverb"
	CategorySpatial    Category = "spatial"
	CategoryUtility    Category = "utility"
)

func (c Category) valid() bool {
	switch c {
	case CategoryDynamics, CategoryFilter, CategoryDistortion, CategoryModulation,
		CategoryTimeDelay, CategoryReverb, CategorySpatial, CategoryUtility:
		return true
	}
	return false
}

// #endregion category

// #region safety-class
// SafetyClass names the failure mode a unit can drive the signal into.
type SafetyClass string

const (
	SafetyNone      SafetyClass = "none"
	SafetyFeedback  SafetyClass = "feedback-risk"
	SafetyResonance SafetyClass = "resonance-risk"
	SafetyDrive     SafetyClass = "cumulative-drive"
)

// #endregion safety-class

// #region role
// Role marks a parameter index with a meaning the safety validator understands.
type Role string

const (
	RoleDrive     Role = "drive"
	RoleFeedback  Role = "feedback"
	RoleDelayTime Role = "delay_time"
	RoleResonance Role = "resonance"
	RoleCutoff    Role = "cutoff"
)

// requiredRoles lists the roles a safety class cannot be checked without.
var requiredRoles = map[SafetyClass][]Role{
	SafetyFeedback:  {RoleFeedback},
	SafetyResonance: {RoleResonance, RoleCutoff},
	SafetyDrive:     {RoleDrive},
}

// #endregion role

// #region descriptor
// Descriptor is the static metadata for one processing-unit type.
// Descriptors are shared read-only; callers must not modify Params or Roles.
type Descriptor struct {
	ID            int          `yaml:"id"`
	Name          string       `yaml:"name"`
	Category      Category     `yaml:"category"`
	ChainPriority int          `yaml:"priority"`
	Safety        SafetyClass  `yaml:"safety"`
	Params        []string     `yaml:"params"`
	Roles         map[Role]int `yaml:"roles"`
}

// ParamCount returns the number of parameters the unit takes.
func (d Descriptor) ParamCount() int {
	return len(d.Params)
}

// RoleIndex returns the parameter index carrying role r.
func (d Descriptor) RoleIndex(r Role) (int, bool) {
	i, ok := d.Roles[r]
	return i, ok
}

// ParamIndex returns the position of the named parameter.
func (d Descriptor) ParamIndex(name string) (int, bool) {
	for i, p := range d.Params {
		if p == name {
			return i, true
		}
	}
	return 0, false
}

// #endregion descriptor
