package playbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlaybookFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playbook.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writePlaybookFile(t, `
name: Connect ATC
steps:
  - id: parse_ticket
    description: Read the ticket fields
    system: OTRS
    action: parse
    params:
      urlPattern: otrs.tlpn
      message: PARSE_OTRS
  - id: open_card
    description: Open the client card
    system: Accounting
    action: navigate
    params:
      url: https://acc.example/clients/{clientCode}
    waitForConfirm: false
`)

	pb, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Connect ATC", pb.Name)
	require.Len(t, pb.Steps, 2)
	assert.Equal(t, ActionParse, pb.Steps[0].Action)
	assert.True(t, pb.Steps[0].ConfirmRequired())
	assert.False(t, pb.Steps[1].ConfirmRequired())
	assert.Equal(t, "https://acc.example/clients/{clientCode}", pb.Steps[1].Params.URL)
}

func TestLoadFromFileRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errPart string
	}{
		{
			"missing name",
			"steps:\n  - id: a\n    action: click\n",
			"missing 'name'",
		},
		{
			"missing step id",
			"name: X\nsteps:\n  - action: click\n",
			"missing 'id'",
		},
		{
			"duplicate step id",
			"name: X\nsteps:\n  - id: a\n    action: click\n  - id: a\n    action: click\n",
			"duplicate step id",
		},
		{
			"unknown action",
			"name: X\nsteps:\n  - id: a\n    action: teleport\n",
			"unknown action",
		},
		{
			"broken yaml",
			"name: [unclosed",
			"parsing playbook YAML",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writePlaybookFile(t, tc.content)
			_, err := LoadFromFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestBuiltinScenariosAreValid(t *testing.T) {
	require.NotEmpty(t, BuiltinScenarios)
	for _, pb := range BuiltinScenarios {
		pb := pb
		t.Run(pb.ID, func(t *testing.T) {
			assert.True(t, pb.BuiltIn)
			require.NoError(t, pb.Validate())
		})
	}
}

func TestBuiltinScenarioLookup(t *testing.T) {
	pb, ok := BuiltinScenario(BuiltinScenarios[0].ID)
	require.True(t, ok)
	assert.Equal(t, BuiltinScenarios[0].ID, pb.ID)

	_, ok = BuiltinScenario("nope")
	assert.False(t, ok)
}
