package blocks

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "cms-backend/pkg/errors"
)

// reserved keys are structural and never folded into attributes.
var reserved = map[string]struct{}{
	"type":     {},
	"attrs":    {},
	"content":  {},
	"children": {},
	"marks":    {},
	"text":     {},
}

// Parse decodes a stored blocks value. raw may be a JSON string, a single
// block object (typically a "doc"), or an array of block objects. nil and ""
// parse to an empty tree.
func Parse(raw any) ([]Block, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, pkgerrors.NewValidationErrorf("blocks: invalid JSON: %v", err)
		}
		if _, nested := decoded.(string); nested {
			return nil, pkgerrors.NewValidationError("blocks: JSON string does not hold a block tree")
		}
		return Parse(decoded)
	case []byte:
		return Parse(string(v))
	case map[string]any:
		b, err := parseBlock(v, "blocks")
		if err != nil {
			return nil, err
		}
		return []Block{b}, nil
	case []any:
		return parseList(v, "blocks")
	case []map[string]any:
		list := make([]any, len(v))
		for i := range v {
			list[i] = v[i]
		}
		return parseList(list, "blocks")
	default:
		return nil, pkgerrors.NewValidationErrorf("blocks: unsupported value of type %T", raw)
	}
}

func parseList(list []any, path string) ([]Block, error) {
	out := make([]Block, 0, len(list))
	for i, elem := range list {
		at := fmt.Sprintf("%s[%d]", path, i)
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, pkgerrors.NewValidationErrorf("%s: block must be an object, got %T", at, elem)
		}
		b, err := parseBlock(m, at)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func parseBlock(m map[string]any, path string) (Block, error) {
	tag := ""
	if rawType, present := m["type"]; present && rawType != nil {
		s, ok := rawType.(string)
		if !ok {
			return nil, pkgerrors.NewValidationErrorf("%s: type must be a string, got %T", path, rawType)
		}
		tag = s
	}

	attrs, err := parseAttrs(m, path)
	if err != nil {
		return nil, err
	}

	switch TypeOf(tag) {
	case TypeText:
		text, _ := m["text"].(string)
		marks, err := parseMarks(m["marks"], path)
		if err != nil {
			return nil, err
		}
		return &TextBlock{Text: text, Marks: marks}, nil

	case TypePostGrid:
		pg := &PostGridBlock{Attrs: attrs, Limit: attrs["limit"]}
		if ft, present := attrs["filterTag"]; present && ft != nil {
			s, ok := ft.(string)
			if !ok {
				return nil, pkgerrors.NewValidationErrorf("%s: filterTag must be a string, got %T", path, ft)
			}
			pg.FilterTag = strings.TrimSpace(s)
		}
		return pg, nil

	default:
		children, err := parseChildren(m, path)
		if err != nil {
			return nil, err
		}
		return &ElementBlock{Kind: TypeOf(tag), Tag: tag, Attrs: attrs, Children: children}, nil
	}
}

// parseAttrs reads the "attrs" object and folds in non-structural top-level
// keys that attrs does not already define.
func parseAttrs(m map[string]any, path string) (map[string]any, error) {
	attrs := map[string]any{}
	if raw, present := m["attrs"]; present && raw != nil {
		a, ok := raw.(map[string]any)
		if !ok {
			return nil, pkgerrors.NewValidationErrorf("%s: attrs must be an object, got %T", path, raw)
		}
		for k, v := range a {
			attrs[k] = v
		}
	}
	for k, v := range m {
		if _, skip := reserved[k]; skip {
			continue
		}
		if _, exists := attrs[k]; !exists {
			attrs[k] = v
		}
	}
	return attrs, nil
}

func parseChildren(m map[string]any, path string) ([]Block, error) {
	for _, name := range []string{"content", "children"} {
		raw, present := m[name]
		if !present || raw == nil {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, pkgerrors.NewValidationErrorf("%s: %s must be an array, got %T", path, name, raw)
		}
		return parseList(list, path+"."+name)
	}
	return nil, nil
}

func parseMarks(raw any, path string) ([]Mark, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, pkgerrors.NewValidationErrorf("%s: marks must be an array, got %T", path, raw)
	}
	marks := make([]Mark, 0, len(list))
	for i, elem := range list {
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, pkgerrors.NewValidationErrorf("%s.marks[%d]: mark must be an object, got %T", path, i, elem)
		}
		typ, _ := m["type"].(string)
		attrs, _ := m["attrs"].(map[string]any)
		marks = append(marks, Mark{Type: typ, Attrs: attrs})
	}
	return marks, nil
}
