package record

import "strings"

// AddKeys ensures each record has every key in defaults, assigning the
// provided default value where the key is absent.
func (d *DataSet) AddKeys(defaults map[string]any) {
	for _, r := range d.Records {
		for path, def := range defaults {
			if _, ok := r.Walk(path); !ok {
				_ = r.Assign(path, def)
			}
		}
	}
}

// DropKeys removes the named paths from every record.
func (d *DataSet) DropKeys(paths ...string) {
	for _, r := range d.Records {
		for _, p := range paths {
			_, _ = r.Drop(p)
		}
	}
}

// CopyKey copies the value at src to dest in every record that has src.
func (d *DataSet) CopyKey(src, dest string) {
	for _, r := range d.Records {
		if v, ok := r.Walk(src); ok {
			_ = r.Assign(dest, v)
		}
	}
}

// RenameKeys renames keys per the given src->dest mapping in every record.
func (d *DataSet) RenameKeys(mapping map[string]string) {
	for _, r := range d.Records {
		for src, dest := range mapping {
			if v, ok := r.Walk(src); ok {
				_, _ = r.Drop(src)
				_ = r.Assign(dest, v)
			}
		}
	}
}

// CastKey applies Cast(typeof) to the value at path in every record,
// writing the result to dst instead of path when dst is non-empty.
func (d *DataSet) CastKey(path, typeof, dst string) {
	for _, r := range d.Records {
		if v, ok := r.Walk(path); ok {
			target := path
			if dst != "" {
				target = dst
			}
			_ = r.Assign(target, Cast(v, typeof))
		}
	}
}

// CreateKeyFromKeys builds a new key by joining the string forms of the
// values at sourceKeys with sep, mirroring create_key_from_keys.
func (d *DataSet) CreateKeyFromKeys(dest string, sourceKeys []string, sep string) {
	for _, r := range d.Records {
		parts := make([]string, 0, len(sourceKeys))
		for _, sk := range sourceKeys {
			if v, ok := r.Walk(sk); ok {
				parts = append(parts, castStr(v))
			}
		}
		_ = r.Assign(dest, strings.Join(parts, sep))
	}
}

// TitleKeys renames every top-level key in every record to title case.
func (d *DataSet) TitleKeys() {
	for i, r := range d.Records {
		out := WalkableDict{}
		for k, v := range r {
			out[strings.Title(strings.ToLower(k))] = v
		}
		d.Records[i] = out
	}
}

// RemoveDuplicateRecords drops records whose flattened representation is
// byte-identical to one already kept, preserving first-seen order.
func (d *DataSet) RemoveDuplicateRecords() {
	seen := map[string]bool{}
	out := make([]WalkableDict, 0, len(d.Records))
	for _, r := range d.Records {
		key := flattenKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	d.Records = out
}

func flattenKey(r WalkableDict) string {
	flat := r.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sortStrings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(castStr(flat[k]))
		b.WriteByte(';')
	}
	return b.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// ConvertListOfDictToDict converts a list-of-{key,value} records at path
// into a single map, mirroring key_value_list_to_dict (e.g. AWS-style Tags
// lists). keyName/valueName default to "Key"/"Value" when empty.
func (d *DataSet) ConvertListOfDictToDict(path, keyName, valueName string) {
	if keyName == "" {
		keyName = "Key"
	}
	if valueName == "" {
		valueName = "Value"
	}

	for _, r := range d.Records {
		v, ok := r.Walk(path)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}

		out := map[string]any{}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			k, hasKey := m[keyName]
			if !hasKey {
				continue
			}
			out[castStr(k)] = m[valueName]
		}
		_ = r.Assign(path, out)
	}
}

// ConvertListToString joins the list at path with sep into a single string.
func (d *DataSet) ConvertListToString(path, sep string) {
	for _, r := range d.Records {
		v, ok := r.Walk(path)
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = castStr(item)
		}
		_ = r.Assign(path, strings.Join(parts, sep))
	}
}

// ConvertStringToList splits the string at path by sep into a list.
func (d *DataSet) ConvertStringToList(path, sep string) {
	for _, r := range d.Records {
		v, ok := r.Walk(path)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, sep)
		list := make([]any, len(parts))
		for i, p := range parts {
			list[i] = p
		}
		_ = r.Assign(path, list)
	}
}
