package core

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

type agentFile struct {
	Start Cell `yaml:"start" json:"start"`
	Goal  Cell `yaml:"goal" json:"goal"`
}

type instanceFile struct {
	Name      string      `yaml:"name,omitempty" json:"name,omitempty"`
	Width     int         `yaml:"width" json:"width"`
	Height    int         `yaml:"height" json:"height"`
	Obstacles []Cell      `yaml:"obstacles,omitempty" json:"obstacles,omitempty"`
	Agents    []agentFile `yaml:"agents" json:"agents"`
	Horizon   *int        `yaml:"horizon,omitempty" json:"horizon,omitempty"`
}

// ParseInstance decodes a YAML (or JSON) instance document. A missing
// horizon yields AutoHorizon. The result is not validated.
func ParseInstance(data []byte) (*Instance, error) {
	var f instanceFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse instance")
	}
	horizon := AutoHorizon
	if f.Horizon != nil {
		horizon = *f.Horizon
	}
	inst := NewInstance(f.Width, f.Height, horizon)
	inst.Name = f.Name
	if err := inst.Grid.Block(f.Obstacles...); err != nil {
		return nil, errors.Wrap(InvalidInstanceError{Problems: []string{err.Error()}}, "parse instance")
	}
	for _, a := range f.Agents {
		inst.AddAgent(a.Start, a.Goal)
	}
	return inst, nil
}

// LoadInstance reads and parses an instance file.
func LoadInstance(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	inst, err := ParseInstance(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if inst.Name == "" {
		inst.Name = path
	}
	return inst, nil
}

func toFile(inst *Instance) *instanceFile {
	f := &instanceFile{
		Name:      inst.Name,
		Width:     inst.Grid.Width,
		Height:    inst.Grid.Height,
		Obstacles: inst.Grid.Obstacles(),
	}
	if inst.Horizon != AutoHorizon {
		h := inst.Horizon
		f.Horizon = &h
	}
	for _, a := range inst.Agents {
		f.Agents = append(f.Agents, agentFile{Start: a.Start, Goal: a.Goal})
	}
	return f
}

// WriteInstance encodes inst as YAML.
func WriteInstance(w io.Writer, inst *Instance) error {
	data, err := yaml.Marshal(toFile(inst))
	if err != nil {
		return errors.Wrap(err, "marshal instance")
	}
	_, err = w.Write(data)
	return errors.Wrap(err, "write instance")
}

// WriteInstanceJSON encodes inst as indented JSON, which ParseInstance
// also reads.
func WriteInstanceJSON(w io.Writer, inst *Instance) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(toFile(inst)), "write instance")
}
