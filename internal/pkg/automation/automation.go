// Package automation resolves which automations and scripts reference a
// device. It reads a Home Assistant style file with an "automation" list and
// a "script" map and collects every device_id found anywhere in their
// triggers, conditions and actions.
package automation

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	automationDomain = "automation"
	scriptDomain     = "script"
	deviceIDKey      = "device_id"
)

// References maps automation and script entity ids to the device ids they use.
type References struct {
	devices map[string][]string
}

type file struct {
	Automations []yaml.Node          `yaml:"automation"`
	Scripts     map[string]yaml.Node `yaml:"script"`
}

// Load reads path. An empty path yields no references.
func Load(path string) (*References, error) {
	if path == "" {
		return &References{devices: map[string][]string{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading automations: %w", err)
	}
	refs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	zap.L().Info("automations loaded", zap.String("path", path), zap.Int("entities", len(refs.devices)))
	return refs, nil
}

func Parse(data []byte) (*References, error) {
	f := file{}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing automations: %w", err)
	}

	refs := &References{devices: map[string][]string{}}
	for i := range f.Automations {
		node := &f.Automations[i]
		refs.add(automationDomain+"."+automationObjectID(node, i), node)
	}
	for name := range f.Scripts {
		node := f.Scripts[name]
		refs.add(scriptDomain+"."+name, &node)
	}
	return refs, nil
}

// EntitiesReferencing returns the automation and script entity ids that
// reference deviceID, sorted.
func (r *References) EntitiesReferencing(deviceID string) []string {
	var out []string
	for entityID, devices := range r.devices {
		if lo.Contains(devices, deviceID) {
			out = append(out, entityID)
		}
	}
	sort.Strings(out)
	return out
}

// ReferencedDevices returns the device ids used by entityID.
func (r *References) ReferencedDevices(entityID string) []string {
	return r.devices[entityID]
}

func (r *References) add(entityID string, node *yaml.Node) {
	devices := lo.Uniq(collectDeviceIDs(node, nil))
	sort.Strings(devices)
	r.devices[entityID] = devices
}

// automationObjectID derives the entity object id from alias, then id.
func automationObjectID(node *yaml.Node, index int) string {
	for _, key := range []string{"alias", "id"} {
		if v := mappingValue(node, key); v != nil && v.Kind == yaml.ScalarNode && v.Value != "" {
			return strings.ReplaceAll(slug.Make(v.Value), "-", "_")
		}
	}
	return fmt.Sprintf("automation_%d", index)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func collectDeviceIDs(node *yaml.Node, out []string) []string {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range node.Content {
			out = collectDeviceIDs(c, out)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Value == deviceIDKey {
				out = append(out, scalars(value)...)
				continue
			}
			out = collectDeviceIDs(value, out)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			out = collectDeviceIDs(node.Alias, out)
		}
	}
	return out
}

// scalars accepts a single device id or a list of them.
func scalars(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "" {
			return []string{node.Value}
		}
	case yaml.SequenceNode:
		var out []string
		for _, c := range node.Content {
			out = append(out, scalars(c)...)
		}
		return out
	}
	return nil
}
