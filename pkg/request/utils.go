package request

import (
	jsonlib "encoding/json"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// EncodeQuery converts call data to an URL encoded string, it is used for query and form bodies.
// The keys order is preserved for *orderedmap.OrderedMap, otherwise keys are sorted.
// Nested slices and maps are flattened to "key[index]" fields.
func EncodeQuery(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimPrefix(v, "?"), nil
	case []byte:
		return strings.TrimPrefix(string(v), "?"), nil
	case url.Values:
		return v.Encode(), nil
	case map[string]string:
		values := make(url.Values)
		for k, s := range v {
			values.Set(k, s)
		}
		return values.Encode(), nil
	case *orderedmap.OrderedMap:
		var parts []string
		for _, k := range v.Keys() {
			value, _ := v.Get(k)
			fields, err := flatten(k, value)
			if err != nil {
				return "", err
			}
			parts = append(parts, fields...)
		}
		return strings.Join(parts, "&"), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			fields, err := flatten(k, v[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, fields...)
		}
		return strings.Join(parts, "&"), nil
	default:
		return "", fmt.Errorf(`cannot encode %T as query, expected a map`, data)
	}
}

func flatten(key string, value any) (out []string, err error) {
	if value == nil {
		return []string{url.QueryEscape(key) + "="}, nil
	}
	ty := reflect.TypeOf(value)
	switch {
	case ty.Kind() == reflect.Slice && ty.Elem().Kind() != reflect.Uint8:
		rv := reflect.ValueOf(value)
		for i := 0; i < rv.Len(); i++ {
			fields, err := flatten(fmt.Sprintf("%s[%d]", key, i), rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, fields...)
		}
		return out, nil
	case ty.Kind() == reflect.Map && ty.Key().Kind() == reflect.String:
		rv := reflect.ValueOf(value)
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields, err := flatten(fmt.Sprintf("%s[%s]", key, k), rv.MapIndex(reflect.ValueOf(k)).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, fields...)
		}
		return out, nil
	default:
		str, err := castToString(value)
		if err != nil {
			return nil, err
		}
		return []string{url.QueryEscape(key) + "=" + url.QueryEscape(str)}, nil
	}
}

func castToString(v any) (string, error) {
	// Ordered map
	if orderedMap, ok := v.(*orderedmap.OrderedMap); ok {
		// Standard json encoding library is used.
		// JsonIter lib returns non-compact JSON,
		// if custom OrderedMap.MarshalJSON method is used.
		out, err := jsonlib.Marshal(orderedMap)
		if err != nil {
			return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
		}
		return string(out), nil
	}

	// Other types
	out, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
	}
	return out, nil
}

func cloneHeader(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	return maps.Clone(in)
}
