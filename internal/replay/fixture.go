package replay

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/launchlab/shotcore/internal/frame"
	"github.com/launchlab/shotcore/internal/lifecycle"
)

//go:embed fixture.schema.json
var fixtureSchemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string         `json:"description"`
	Config      *FixtureConfig `json:"config,omitempty"`
	Frames      []frame.Frame  `json:"frames"`
	Expected    []string       `json:"expected"`
}

// FixtureConfig overrides the lifecycle thresholds a fixture depends on.
type FixtureConfig struct {
	DeadmanSeconds             *float64 `json:"deadman_seconds,omitempty"`
	ArmRunLength               *int     `json:"arm_run_length,omitempty"`
	SeparationDeadlineFrames   *int     `json:"separation_deadline_frames,omitempty"`
	MaxGraceFrames             *int     `json:"max_grace_frames,omitempty"`
	CorroborationWindowSeconds *float64 `json:"corroboration_window_seconds,omitempty"`
}
// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads, validates and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture validates raw against the fixture schema before decoding.
func ParseFixture(raw []byte) (*Fixture, error) {
	s, err := fixtureSchema()
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := s.Validate(payload); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &f, nil
}

func fixtureSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("fixture.schema.json", fixtureSchemaSource)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile fixture schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Apply returns base with the fixture's overrides applied.
func (fc *FixtureConfig) Apply(base lifecycle.Config) lifecycle.Config {
	if fc == nil {
		return base
	}
	if fc.DeadmanSeconds != nil {
		base.DeadmanSeconds = *fc.DeadmanSeconds
	}
	if fc.ArmRunLength != nil {
		base.ArmRunLength = *fc.ArmRunLength
	}
	if fc.SeparationDeadlineFrames != nil {
		base.SeparationDeadlineFrames = *fc.SeparationDeadlineFrames
	}
	if fc.MaxGraceFrames != nil {
		base.Grace.MaxGraceFrames = *fc.MaxGraceFrames
	}
	if fc.CorroborationWindowSeconds != nil {
		base.CorroborationWindowSeconds = *fc.CorroborationWindowSeconds
	}
	return base
}
// #endregion fixture-loader
