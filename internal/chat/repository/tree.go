package repository

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"realtime_chat/internal/chat/domain"
)

const forbiddenSegmentChars = ".$#[]"

// splitPath "/a/b" -> [a b]
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, forbiddenSegmentChars) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
		}
	}
	return segs, nil
}

func joinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

// hasPrefix report whether a is b or lies under b
func hasPrefix(a, b []string) bool {
	if len(b) > len(a) {
		return false
	}
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// overlaps report whether a write to one path can change the other
func overlaps(a, b []string) bool {
	return hasPrefix(a, b) || hasPrefix(b, a)
}

// getIn walk segs from root, list nodes are indexed by position
func getIn(root interface{}, segs []string) (interface{}, bool) {
	node := root
	for _, s := range segs {
		switch n := node.(type) {
		case map[string]interface{}:
			v, ok := n[s]
			if !ok {
				return nil, false
			}
			node = v
		case []interface{}:
			i, err := strconv.Atoi(s)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	if isEmpty(node) {
		return nil, false
	}
	return node, true
}

// setIn return a copy of root with value stored at segs, nil removes it.
// root itself is not modified.
func setIn(root interface{}, segs []string, value interface{}) interface{} {
	if len(segs) == 0 {
		return prune(value)
	}

	head, rest := segs[0], segs[1:]
	if list, ok := root.([]interface{}); ok {
		if i, err := strconv.Atoi(head); err == nil && i >= 0 && i < len(list) {
			cp := make([]interface{}, len(list))
			copy(cp, list)
			cp[i] = setIn(list[i], rest, value)
			return prune(cp)
		}
	}

	m := map[string]interface{}{}
	if src, ok := root.(map[string]interface{}); ok {
		for k, v := range src {
			m[k] = v
		}
	}
	child := setIn(m[head], rest, value)
	if child == nil {
		delete(m, head)
	} else {
		m[head] = child
	}
	return prune(m)
}

// prune drop nil members and empty containers, nil when nothing is left
func prune(v interface{}) interface{} {
	switch n := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, child := range n {
			if c := prune(child); c != nil {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []interface{}:
		if len(n) == 0 {
			return nil
		}
		out := make([]interface{}, len(n))
		for i, child := range n {
			out[i] = prune(child)
		}
		return out
	default:
		return v
	}
}

func isEmpty(v interface{}) bool {
	switch n := v.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(n) == 0
	case []interface{}:
		return len(n) == 0
	}
	return false
}

// deepCopy copy maps and lists, leaves are immutable
func deepCopy(v interface{}) interface{} {
	switch n := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, child := range n {
			out[k] = deepCopy(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, child := range n {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

func sameValue(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// toTree encode v into the generic JSON tree the store keeps
func toTree(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromTree decode a JSON tree node into out
func fromTree(node interface{}, out interface{}) error {
	b, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// asList the node as a list, anything else is an empty list
func asList(node interface{}) []interface{} {
	if l, ok := node.([]interface{}); ok {
		return l
	}
	// {"0": .., "1": ..} maps written by index
	if m, ok := node.(map[string]interface{}); ok {
		out := make([]interface{}, 0, len(m))
		for i := 0; ; i++ {
			v, ok := m[strconv.Itoa(i)]
			if !ok {
				break
			}
			out = append(out, v)
		}
		return out
	}
	return nil
}
