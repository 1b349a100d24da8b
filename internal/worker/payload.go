package worker

import (
	"fmt"
	"strings"

	"github.com/duke-git/lancet/v2/slice"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/ohler55/ojg/jp"
)

var (
	targetIDPaths = []jp.Expr{
		jp.MustParseString("$.id"),
		jp.MustParseString("$.commandId"),
		jp.MustParseString("$.targetId"),
	}
	namePaths = []jp.Expr{
		jp.MustParseString("$.name"),
	}
	filePathPaths = []jp.Expr{
		jp.MustParseString("$.filepath"),
		jp.MustParseString("$.filePath"),
		jp.MustParseString("$.path"),
	}
	filesPath = jp.MustParseString("$.files[*]")
)

// TargetID extracts the id of the command a status or cancel request refers
// to. The payload may be the id itself or an object carrying it.
func TargetID(payload any) string {
	return payloadString(payload, targetIDPaths...)
}

// payloadString returns the payload itself when it is a scalar, otherwise the
// first non-blank value matched by paths.
func payloadString(payload any, paths ...jp.Expr) string {
	switch v := payload.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, p := range paths {
			if s := scalarString(p.First(v)); !strutil.IsBlank(s) {
				return strings.TrimSpace(s)
			}
		}
		return ""
	case []any:
		return ""
	default:
		return scalarString(v)
	}
}

// payloadStrings returns the list of strings carried by the payload: a plain
// string, an array of strings, or an object with a "files" array.
func payloadStrings(payload any) []string {
	var raw []any
	switch v := payload.(type) {
	case nil:
		return nil
	case string:
		raw = []any{v}
	case []any:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	case map[string]any:
		raw = filesPath.Get(v)
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s := strings.TrimSpace(scalarString(item)); s != "" {
			out = append(out, s)
		}
	}
	return slice.Unique(out)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
