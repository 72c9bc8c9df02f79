package router

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// validateRouteSpec validates a RouteSpec.
func validateRouteSpec(spec RouteSpec) error {
	if spec.OperationID == "" {
		return errors.New("field OperationID required")
	}

	if spec.Summary == "" {
		return errors.New("field Summary required")
	}

	if spec.Group == "" {
		return errors.New("field Group required")
	}

	if spec.Handler == nil {
		return errors.New("field Handler required")
	}

	return nil
}

// pathParams extracts {name} and {name:regex} parameter names from a path.
func pathParams(path string) ([]string, error) {
	if strings.Count(path, "{") != strings.Count(path, "}") {
		return nil, errors.New("mismatched number of '{' and '}' in path")
	}

	var names []string

	for segment := range strings.SplitSeq(path, "/") {
		if !strings.HasPrefix(segment, "{") || !strings.HasSuffix(segment, "}") {
			if strings.ContainsAny(segment, "{}") {
				return nil, fmt.Errorf("invalid parameter syntax in segment %q", segment)
			}

			continue
		}

		name, _, _ := strings.Cut(segment[1:len(segment)-1], ":")
		if !isValidParameterName(name) {
			return nil, fmt.Errorf("invalid parameter name %q", name)
		}

		names = append(names, name)
	}

	return names, nil
}

func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		letter := r < unicode.MaxASCII && unicode.IsLetter(r)
		if i == 0 && !letter {
			return false
		}

		if !letter && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

// validateParameters checks that path parameters and documented parameters agree.
func validateParameters(spec RouteSpec) error {
	inPath, err := pathParams(spec.fullPath)
	if err != nil {
		return fmt.Errorf("invalid path %s: %w", spec.fullPath, err)
	}

	documented := map[string]struct{}{}
	validIn := []ParameterIn{ParameterInPath, ParameterInQuery, ParameterInHeader}

	for name, p := range spec.Parameters {
		if p.Description == "" {
			return fmt.Errorf("parameter %s Description required for %s %s", name, spec.method, spec.fullPath)
		}

		if !slices.Contains(validIn, p.In) {
			return fmt.Errorf("parameter %s In must be one of %v for %s %s", name, validIn, spec.method, spec.fullPath)
		}

		if p.In != ParameterInPath {
			continue
		}

		if !slices.Contains(inPath, name) {
			return fmt.Errorf("documented path parameter %s not found in path", name)
		}

		if !p.Required {
			return fmt.Errorf("path parameter %s must be required", name)
		}

		documented[name] = struct{}{}
	}

	for _, name := range inPath {
		if _, ok := documented[name]; !ok {
			return fmt.Errorf("path parameter %s not documented", name)
		}
	}

	return nil
}
