package runner

import "strings"

// Options is an ordered list of option-name -> value entries, rendered to
// argv by (*Runner).Invoke according to the Runner's Style. Using a slice
// rather than a Go map keeps rendering order deterministic (a bare map
// would shuffle flags on every run, which is fine for git but makes tests
// and tracers useless).
type Options []Opt

// Opt is one entry of Options. Value is either bool(true) (a flag) or a
// string (a valued option). The special Name "-" expands each character
// of Value to its own short flag, set to true (e.g. Short("xz") renders
// as "-x -z" under both styles).
type Opt struct {
	Name  string
	Value interface{}
}

// Flag adds a boolean flag, e.g. Flag("w") -> -w under either style, and
// Flag("porcelain") -> --porcelain (GNUOpt) or -porcelain (OneDash).
func Flag(name string) Opt { return Opt{Name: name, Value: true} }

// Val adds a valued option, e.g. Val("abbrev", "7").
func Val(name, value string) Opt { return Opt{Name: name, Value: value} }

// Short expands a run of single-character flags, each to its own true
// flag, e.g. Short("xz") renders as "-x -z".
func Short(chars string) Opt { return Opt{Name: "-", Value: chars} }

// Style controls how Options render to argv.
type Style int

const (
	// GNUOpt renders multi-character names as --name[=value] and
	// single-character names as -n [value].
	GNUOpt Style = iota
	// OneDash renders every name as -name [value].
	OneDash
)

// render expands opts to argv tokens under style. It returns an *Error
// with Code BadOptionsKey if a flag-only entry's name contains "=".
func render(style Style, opts Options) ([]string, error) {
	var argv []string
	for _, o := range opts {
		if o.Name == "-" {
			chars, _ := o.Value.(string)
			for _, c := range chars {
				argv = append(argv, "-"+string(c))
			}
			continue
		}

		flagOnly, isBool := o.Value.(bool)
		if isBool && flagOnly && strings.Contains(o.Name, "=") {
			return nil, &Error{Code: BadOptionsKey, Message: "flag-only option name contains '=': " + o.Name}
		}

		switch style {
		case GNUOpt:
			long := len(o.Name) > 1
			if isBool {
				if long {
					argv = append(argv, "--"+o.Name)
				} else {
					argv = append(argv, "-"+o.Name)
				}
				continue
			}
			value, _ := o.Value.(string)
			if long {
				argv = append(argv, "--"+o.Name+"="+value)
			} else {
				argv = append(argv, "-"+o.Name, value)
			}
		case OneDash:
			if isBool {
				argv = append(argv, "-"+o.Name)
				continue
			}
			value, _ := o.Value.(string)
			argv = append(argv, "-"+o.Name, value)
		}
	}
	return argv, nil
}
