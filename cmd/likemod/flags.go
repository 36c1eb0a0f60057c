package main

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/leodido/likemod"
	"github.com/thediveo/enumflag/v2"
)

// moduleParams collects repeated --param flags.
// Each flag carries exactly one assignment; its value is kept verbatim.
type moduleParams likemod.Params

func (m *moduleParams) String() string {
	return likemod.Params(*m).String()
}

func (m *moduleParams) Set(input string) error {
	name, v, err := likemod.ParseParam(input)
	if err != nil {
		return err
	}
	if *m == nil {
		*m = moduleParams{}
	}
	(*m)[name] = v
	return nil
}

func (m *moduleParams) Type() string {
	return "name=value"
}

// parseModuleParams parses a parameter line as found in config files and
// the environment: assignments separated by whitespace, where double quotes
// group a value containing spaces. Quotes are kept, the kernel strips them.
func parseModuleParams(input string) (moduleParams, error) {
	params := moduleParams{}
	for _, field := range splitParams(input) {
		name, v, err := likemod.ParseParam(field)
		if err != nil {
			return nil, err
		}
		params[name] = v
	}
	return params, nil
}

// splitParams splits s on whitespace outside double quotes.
func splitParams(s string) []string {
	var fields []string
	var b strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			b.WriteRune(r)
		case unicode.IsSpace(r) && !quoted:
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}
	return fields
}

type featureRequirements []likemod.Feature

var featureIdentifierMap = func() map[likemod.Feature][]string {
	ids := make(map[likemod.Feature][]string, len(likemod.FeatureValues()))
	for _, f := range likemod.FeatureValues() {
		ids[f] = []string{f.String()}
	}
	return ids
}()

func (r *featureRequirements) String() string {
	names := make([]string, 0, len(*r))
	for _, f := range *r {
		names = append(names, f.String())
	}

	return strings.Join(names, ",")
}

func (r *featureRequirements) Set(input string) error {
	features, err := parseFeatureRequirements(input)
	if err != nil {
		return err
	}

	*r = append(*r, features...)
	return nil
}

func (r *featureRequirements) Type() string {
	return "feature"
}

func parseFeatureRequirements(input string) (featureRequirements, error) {
	if strings.TrimSpace(input) == "" {
		return featureRequirements{}, nil
	}

	parts := strings.Split(input, ",")
	features := make(featureRequirements, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}

		var feature likemod.Feature
		enumValue := enumflag.New(&feature, "likemod.Feature", featureIdentifierMap, enumflag.EnumCaseInsensitive)
		if err := enumValue.Set(name); err != nil {
			return nil, fmt.Errorf("unknown feature: %q (available: %s)", name, availableFeatures())
		}

		features = append(features, feature)
	}

	return features, nil
}

func availableFeatures() string {
	return strings.Join(likemod.FeatureNames(), ", ")
}

func checkLongDescription() string {
	return fmt.Sprintf(`Check that the kernel and this process can manage modules.
Exits with code 0 if all requirements are met, 1 if any are missing.

Available features:
%s`, formatWrappedList(likemod.FeatureNames(), "  ", 80))
}

func formatWrappedList(items []string, indent string, maxWidth int) string {
	if len(items) == 0 {
		return indent + "(none)"
	}

	lines := make([]string, 0, len(items))
	line := indent
	for i, item := range items {
		token := item
		if i < len(items)-1 {
			token += ", "
		}

		if len(line)+len(token) > maxWidth && line != indent {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent + token
			continue
		}

		line += token
	}

	lines = append(lines, strings.TrimRight(line, " "))
	return strings.Join(lines, "\n")
}
