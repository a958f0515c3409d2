package params

import "github.com/raymyers/cpp2cs/pkg/model"

// Parse splits raw and extracts every parameter. `()` and `(void)` both
// give an empty list.
func Parse(raw string) []model.Parameter {
	blocks := Split(raw)
	if len(blocks) == 0 {
		return nil
	}
	out := make([]model.Parameter, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, Extract(b))
	}
	if len(out) == 1 && out[0].Type == "void" && out[0].Name == "" && !out[0].IsPointer {
		return nil
	}
	return out
}

// MergeDefaults returns def's parameters with default values copied from
// the matching positions of decl. Names, comments and raw text stay those
// of def.
func MergeDefaults(decl, def []model.Parameter) []model.Parameter {
	out := make([]model.Parameter, len(def))
	copy(out, def)
	for i := range out {
		if i < len(decl) && out[i].DefaultValue == "" {
			out[i].DefaultValue = decl[i].DefaultValue
		}
		if out[i].Name == "" && i < len(decl) {
			out[i].Name = decl[i].Name
		}
	}
	return out
}
