package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/luckygrid/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prizeYAML = `
categories:
  - {category: main, probability: 0.01}
  - {category: small, probability: 0.29}
  - {category: none, probability: 0.70}
prizes:
  main:
    - {name: Scooter, reward_text: Main_Scooter}
  small:
    - {name: Free Coffee, reward_text: Small_Coffee}
    - {name: Free Soda, reward_text: Small_Soda}
`

func TestLoadPrizeConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadPrizeConfig("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrizeConfig(), cfg)
}

func TestLoadPrizeConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prizes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(prizeYAML), 0o600))

	cfg, err := LoadPrizeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryMain, cfg.TopCategory)
	assert.Equal(t, domain.CategoryNone, cfg.NoPrize)
	require.Len(t, cfg.Categories, 3)
	assert.Equal(t, "Main_Scooter", cfg.Prizes[domain.CategoryMain][0].RewardText)
	assert.Len(t, cfg.Prizes[domain.CategorySmall], 2)
}

func TestParsePrizeConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "categories: []\nbonus: 1\n"},
		{"no categories", "categories: []\n"},
		{"category without prizes", "categories:\n  - {category: main, probability: 1}\n  - {category: none, probability: 1}\n"},
		{"negative weight", "categories:\n  - {category: none, probability: -1}\n  - {category: main, probability: 1}\nprizes:\n  main:\n    - {name: Car, reward_text: Main_Car}\n"},
		{"malformed", "categories: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrizeConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadPrizeConfig_MissingFile(t *testing.T) {
	_, err := LoadPrizeConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFindMigrationDir(t *testing.T) {
	dir := FindMigrationDir()
	assert.Equal(t, "migrations", filepath.Base(dir))
}
