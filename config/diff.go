package config

import "reflect"

// diffEvent lists changed fields as dotted paths of Go field names, e.g.
// "Server.Port" or "Jobs.Digest.Interval".
func diffEvent(old, new any) Event {
	evt := Event{OldConfig: old, NewConfig: new}
	if old == nil || new == nil {
		return evt
	}
	diffValues(reflect.Indirect(reflect.ValueOf(old)), reflect.Indirect(reflect.ValueOf(new)), "", &evt.ChangedKeys)
	return evt
}

func diffValues(old, new reflect.Value, prefix string, out *[]string) {
	if old.Type() != new.Type() {
		*out = append(*out, prefix)
		return
	}
	if reflect.DeepEqual(old.Interface(), new.Interface()) {
		return
	}
	if old.Kind() == reflect.Struct {
		before := len(*out)
		t := old.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			path := f.Name
			if prefix != "" {
				path = prefix + "." + f.Name
			}
			diffValues(old.Field(i), new.Field(i), path, out)
		}
		// The difference is in unexported state only.
		if len(*out) == before && prefix != "" {
			*out = append(*out, prefix)
		}
		return
	}
	if prefix != "" {
		*out = append(*out, prefix)
	}
}
