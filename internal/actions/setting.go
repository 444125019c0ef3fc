package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rigup-sh/rigup/internal/shell"
)

// SettingAction writes a macOS preference through `defaults`. The planner
// only emits it on macOS.
//
// Satisfied reads the current value with `defaults read` and compares it in
// defaults' own textual form (booleans print as 1/0), so a re-run after a
// successful write is a clean skip.
type SettingAction struct {
	Domain string // bundle ID, e.g. "com.apple.dock"
	Key    string
	Value  any
}

func (a *SettingAction) Kind() Kind { return KindSetting }

func (a *SettingAction) Describe() string {
	return fmt.Sprintf("set %s %s = %v", a.Domain, a.Key, a.Value)
}

func (a *SettingAction) Satisfied(ctx context.Context) (bool, error) {
	out, err := shell.Exec(ctx, "defaults", "read", a.Domain, a.Key)
	if err != nil {
		return false, nil // unset key or missing domain reads as not satisfied
	}
	return strings.TrimSpace(out) == defaultsText(a.Value), nil
}

func (a *SettingAction) Apply(ctx context.Context) error {
	typeFlag, val := valueArgs(a.Value)
	out, err := shell.Exec(ctx, "defaults", "write", a.Domain, a.Key, typeFlag, val)
	if err != nil {
		return outputErr(err, out)
	}
	return nil
}

// valueArgs maps a manifest value to the defaults(1) type flag and argument.
func valueArgs(value any) (typeFlag, val string) {
	switch v := value.(type) {
	case bool:
		return "-bool", strconv.FormatBool(v)
	case int:
		return "-int", strconv.Itoa(v)
	case float64:
		return "-float", strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return "-string", v
	default:
		return "-string", fmt.Sprintf("%v", v)
	}
}

// defaultsText renders a value the way `defaults read` prints it.
func defaultsText(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
