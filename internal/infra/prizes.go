package infra

import (
	"bytes"
	"fmt"
	"os"

	"github.com/luckygrid/platform/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadPrizeConfig reads card-pull tables from a YAML file. An empty path
// returns the stock tables.
//
//	top_category: main
//	no_prize: none
//	categories:
//	  - {category: main, probability: 0.001}
//	  - {category: none, probability: 0.999}
//	prizes:
//	  main:
//	    - {name: Car, reward_text: Main_Car}
func LoadPrizeConfig(path string) (domain.PrizeConfig, error) {
	if path == "" {
		return domain.DefaultPrizeConfig(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.PrizeConfig{}, fmt.Errorf("read prize config: %w", err)
	}
	return ParsePrizeConfig(raw)
}

// ParsePrizeConfig decodes and validates YAML prize tables. Unknown keys are
// rejected so a typo cannot silently drop a category.
func ParsePrizeConfig(raw []byte) (domain.PrizeConfig, error) {
	var cfg domain.PrizeConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return domain.PrizeConfig{}, fmt.Errorf("decode prize config: %w", err)
	}
	if cfg.TopCategory == "" {
		cfg.TopCategory = domain.CategoryMain
	}
	if cfg.NoPrize == "" {
		cfg.NoPrize = domain.CategoryNone
	}
	if err := cfg.Validate(); err != nil {
		return domain.PrizeConfig{}, err
	}
	return cfg, nil
}
