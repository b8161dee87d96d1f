package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrRuleNotInFile is returned by SaveEnabled when the file has no rule
// with the requested id.
var ErrRuleNotInFile = errors.New("rule not found in file")

// FilePersister writes toggled rules back to their origin file.
type FilePersister struct{}

// SaveEnabled implements the rule store's persistence hook.
func (FilePersister) SaveEnabled(path, id string, enabled bool) error {
	return SaveEnabled(path, id, enabled)
}

// SaveEnabled sets the enabled field of rule id inside path.
//
// JSON files are rewritten as indented JSON; object keys may be reordered.
// YAML files are edited through the node tree so comments and key order
// survive. The new content replaces the file by rename, so a concurrent
// reload never reads a half-written file.
func SaveEnabled(path, id string, enabled bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var out []byte
	if isYAML(path) {
		out, err = setEnabledYAML(data, id, enabled)
	} else {
		out, err = setEnabledJSON(data, id, enabled)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	return writeFileAtomic(path, out)
}

func setEnabledJSON(data []byte, id string, enabled bool) ([]byte, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, err
	}

	value := json.RawMessage("false")
	if enabled {
		value = json.RawMessage("true")
	}

	// Values stay raw so numbers keep their exact digits. Elements that are
	// not rule objects are written back untouched.
	found := false
	for i, raw := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			continue
		}
		var v string
		if err := json.Unmarshal(obj["id"], &v); err != nil || v != id {
			continue
		}
		obj["enabled"] = value
		updated, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		elems[i] = updated
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrRuleNotInFile, id)
	}

	out, err := json.MarshalIndent(elems, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func setEnabledYAML(data []byte, id string, enabled bool) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
		return nil, errors.New("top level is not a sequence")
	}

	value := "false"
	if enabled {
		value = "true"
	}

	found := false
	for _, item := range doc.Content[0].Content {
		if item.Kind != yaml.MappingNode || mappingValue(item, "id") != id {
			continue
		}
		found = true
		if v := mappingNode(item, "enabled"); v != nil {
			v.Kind, v.Tag, v.Value = yaml.ScalarNode, "!!bool", value
			continue
		}
		item.Content = append(item.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "enabled"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: value},
		)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrRuleNotInFile, id)
	}

	return yaml.Marshal(&doc)
}

func mappingNode(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func mappingValue(m *yaml.Node, key string) string {
	if n := mappingNode(m, key); n != nil {
		return n.Value
	}
	return ""
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".handy-rules-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
