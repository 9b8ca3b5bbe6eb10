package config

import (
	"os"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// AppConfig holds the retrieval profiles loaded from the TOML
// configuration file
type AppConfig struct {
	path string

	Profiles []Profile `toml:"profile"`
}

// Profile is one named retrieval weighting
type Profile struct {
	ID               string  `toml:"id"`
	Name             string  `toml:"name"`
	RecencyWeight    float64 `toml:"recency_weight"`
	ImportanceWeight float64 `toml:"importance_weight"`
	RelevanceWeight  float64 `toml:"relevance_weight"`
	TopK             int     `toml:"top_k"`
	MinConfidence    float64 `toml:"min_confidence"`
}

// DefaultProfileID names the built-in profile installed when no
// configuration file is given
const DefaultProfileID = "default"

func defaultProfile() Profile {
	return Profile{
		ID:               DefaultProfileID,
		Name:             "Default",
		RecencyWeight:    1,
		ImportanceWeight: 1,
		RelevanceWeight:  1,
		TopK:             5,
	}
}

// Weights converts the profile weighting to the domain type
func (p *Profile) Weights() model.RetrievalWeights {
	return model.RetrievalWeights{
		Recency:    p.RecencyWeight,
		Importance: p.ImportanceWeight,
		Relevance:  p.RelevanceWeight,
	}
}

// Validate checks if the Profile is valid
func (p *Profile) Validate() error {
	if p.ID == "" {
		return goerr.Wrap(ErrInvalidProfile, "profile ID is required")
	}
	if err := p.Weights().Validate(); err != nil {
		return goerr.Wrap(err, "invalid profile weights", goerr.V(ProfileIDKey, p.ID))
	}
	if p.TopK < 0 {
		return goerr.Wrap(ErrInvalidProfile, "top_k must not be negative", goerr.V(ProfileIDKey, p.ID))
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return goerr.Wrap(ErrInvalidProfile, "min_confidence must be within [0, 1]", goerr.V(ProfileIDKey, p.ID))
	}
	return nil
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	profileIDs := make(map[string]bool)
	for _, p := range a.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if profileIDs[p.ID] {
			return goerr.Wrap(ErrDuplicateProfile, "profile IDs must be unique", goerr.V(ProfileIDKey, p.ID))
		}
		profileIDs[p.ID] = true
	}
	return nil
}

// Flags returns CLI flags for profile configuration
func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to the retrieval profile TOML file",
			Sources:     cli.EnvVars("MNEMOSYNE_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the profile file when one was configured, or installs
// the built-in default profile
func (a *AppConfig) Configure() error {
	if a.path == "" {
		a.Profiles = []Profile{defaultProfile()}
		return nil
	}

	loaded, err := LoadAppConfiguration(a.path)
	if err != nil {
		return err
	}
	a.Profiles = loaded.Profiles
	return nil
}

// Profile returns the profile with the given ID. An empty ID selects
// the default profile.
func (a *AppConfig) Profile(id string) (*Profile, error) {
	if id == "" {
		id = DefaultProfileID
	}
	for i := range a.Profiles {
		if a.Profiles[i].ID == id {
			return &a.Profiles[i], nil
		}
	}
	return nil, goerr.Wrap(ErrNoProfile, "no such retrieval profile", goerr.V(ProfileIDKey, id))
}

// LoadAppConfiguration loads and validates a profile configuration from
// a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}
