// Package pathresolver implements the dotted-path editing/discovery used
// by the admin @edit and @examine fast-path handlers. It operates over the
// generic map[string]any projection of a document rather than its typed Go
// struct, which keeps @edit working against any world object (locations,
// NPCs, items) without a per-type code path, at the cost of a
// marshal/unmarshal round trip per call — an acceptable trade for an
// admin-only, low-frequency operation.
package pathresolver

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
)

// systemKeys are never exposed as editable properties or walked by Discover.
var systemKeys = map[string]bool{
	"instance_id": true,
	"template_id": true,
	"_version":    true,
	"metadata":    true,
}

// toMap round-trips obj through JSON to obtain its generic map projection.
func toMap(obj any) (map[string]any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransportError, "marshaling object for path resolution", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperr.Wrap(apperr.TransportError, "unmarshaling object for path resolution", err)
	}
	return m, nil
}

// fromMap writes m back into out, which must be a pointer to the same
// shape obj was read from. The destination is zeroed first: json.Unmarshal
// merges into existing maps, which would otherwise resurrect keys a patch
// deleted.
func fromMap(m map[string]any, out any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return apperr.Wrap(apperr.TransportError, "marshaling patched object", err)
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() == reflect.Pointer && rv.Elem().CanSet() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Wrap(apperr.TransportError, "unmarshaling patched object", err)
	}
	return nil
}

// Get reads the value at a dotted path (e.g. "state.glowing") inside obj.
func Get(obj any, path string) (any, error) {
	m, err := toMap(obj)
	if err != nil {
		return nil, err
	}
	return getPath(m, strings.Split(path, "."))
}

func getPath(m map[string]any, segments []string) (any, error) {
	if len(segments) == 0 {
		return nil, apperr.New(apperr.MalformedInput, "empty path")
	}
	head := segments[0]
	v, ok := m[head]
	if !ok {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("no property %q", head))
	}
	if len(segments) == 1 {
		return v, nil
	}
	next, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.New(apperr.NotFound, fmt.Sprintf("%q is not an object", head))
	}
	return getPath(next, segments[1:])
}

// Set writes value at the dotted path inside obj (a pointer to a struct or
// map), creating intermediate objects as needed. System keys may not be
// targeted.
func Set(obj any, path string, value any) error {
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if systemKeys[seg] {
			return apperr.New(apperr.PermissionDenied, fmt.Sprintf("%q is a system key and cannot be edited", seg))
		}
	}

	m, err := toMap(obj)
	if err != nil {
		return err
	}
	if err := setPath(m, segments, value); err != nil {
		return err
	}
	return fromMap(m, obj)
}

func setPath(m map[string]any, segments []string, value any) error {
	head := segments[0]
	if len(segments) == 1 {
		m[head] = value
		return nil
	}
	next, ok := m[head].(map[string]any)
	if !ok {
		next = make(map[string]any)
		m[head] = next
	}
	return setPath(next, segments[1:], value)
}

// Unset deletes the value at the dotted path inside obj. A missing path is
// not an error; system keys may not be targeted.
func Unset(obj any, path string) error {
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if systemKeys[seg] {
			return apperr.New(apperr.PermissionDenied, fmt.Sprintf("%q is a system key and cannot be edited", seg))
		}
	}
	m, err := toMap(obj)
	if err != nil {
		return err
	}
	unsetPath(m, segments)
	return fromMap(m, obj)
}

func unsetPath(m map[string]any, segments []string) {
	head := segments[0]
	if len(segments) == 1 {
		delete(m, head)
		return
	}
	if next, ok := m[head].(map[string]any); ok {
		unsetPath(next, segments[1:])
	}
}

// Append adds item to the list found at the dotted path inside obj, which
// must already be a JSON array (or absent, in which case it is created).
func Append(obj any, path string, item any) error {
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if systemKeys[seg] {
			return apperr.New(apperr.PermissionDenied, fmt.Sprintf("%q is a system key and cannot be edited", seg))
		}
	}
	m, err := toMap(obj)
	if err != nil {
		return err
	}
	cur, err := getPath(m, segments)
	if err != nil && !apperr.Is(err, apperr.NotFound) {
		return err
	}
	list, _ := cur.([]any)
	list = append(list, item)
	if err := setPath(m, segments, list); err != nil {
		return err
	}
	return fromMap(m, obj)
}

// Remove deletes the first element of the list at path whose "instance_id"
// or "item_id" field equals itemID, returning apperr.NotFound if no such
// element exists.
func Remove(obj any, path, itemID string) error {
	m, err := toMap(obj)
	if err != nil {
		return err
	}
	segments := strings.Split(path, ".")
	cur, err := getPath(m, segments)
	if err != nil {
		return err
	}
	list, ok := cur.([]any)
	if !ok {
		return apperr.New(apperr.InvalidStateUpdate, fmt.Sprintf("%q is not a list", path))
	}
	out := make([]any, 0, len(list))
	removed := false
	for _, el := range list {
		entry, ok := el.(map[string]any)
		if ok && !removed {
			id, _ := entry["instance_id"].(string)
			if id == "" {
				id, _ = entry["item_id"].(string)
			}
			if id == itemID {
				removed = true
				continue
			}
		}
		out = append(out, el)
	}
	if !removed {
		return apperr.New(apperr.NotFound, fmt.Sprintf("no element %q at %q", itemID, path))
	}
	if err := setPath(m, segments, out); err != nil {
		return err
	}
	return fromMap(m, obj)
}

// EditableProperty is one leaf scalar property discovered under an object,
// named by its full dotted path.
type EditableProperty struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Discover recursively walks obj and returns every leaf scalar property
// (bool, number, string), excluding system keys at any depth.
func Discover(obj any) ([]EditableProperty, error) {
	m, err := toMap(obj)
	if err != nil {
		return nil, err
	}
	var out []EditableProperty
	discover(m, "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func discover(m map[string]any, prefix string, out *[]EditableProperty) {
	for k, v := range m {
		if systemKeys[k] {
			continue
		}
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			discover(val, path, out)
		case []any:
			// Lists aren't addressable as scalar leaves; skip.
		case nil:
			// A null carries no scalar value; skip.
		default:
			*out = append(*out, EditableProperty{Path: path, Value: val})
		}
	}
}

// InferValue applies @edit's documented type-inference rule to a raw
// string: true/false become bool, a parseable integer becomes int, a
// parseable float becomes float64, a quoted string has its quotes
// stripped, and anything else is taken as a bareword string.
func InferValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	return raw
}
