package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleassist/robotnik/internal/playbook"
)

func openTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "robotnik.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, ctx
}

func TestRunLog(t *testing.T) {
	st, ctx := openTestStore(t)

	require.NoError(t, st.AddLog(ctx, "OTRS", "Read the ticket", true, ""))
	require.NoError(t, st.AddLog(ctx, "Accounting", "Open the card", true, ""))
	require.NoError(t, st.AddLog(ctx, "Support", "Enter the line", false, "field not found"))

	entries, err := st.Logs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Chronological order, newest entries only.
	assert.Equal(t, "Accounting", entries[0].System)
	assert.Equal(t, "Support", entries[1].System)
	assert.False(t, entries[1].OK)
	assert.Equal(t, "field not found", entries[1].Error)

	require.NoError(t, st.ClearLogs(ctx))
	entries, err = st.Logs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPlaybookCRUD(t *testing.T) {
	st, ctx := openTestStore(t)

	pb := playbook.Playbook{
		Name: "My flow",
		Steps: []playbook.Step{
			{ID: "a", Description: "Open", Action: playbook.ActionNavigate,
				Params: playbook.StepParams{URL: "https://example.com"}},
		},
	}

	saved, err := st.SavePlaybook(ctx, pb)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := st.Playbook(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "My flow", got.Name)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "https://example.com", got.Steps[0].Params.URL)

	all, err := st.Playbooks(ctx)
	require.NoError(t, err)
	// Built-ins come first, then user playbooks.
	require.Len(t, all, len(playbook.BuiltinScenarios)+1)
	assert.True(t, all[0].BuiltIn)
	assert.Equal(t, saved.ID, all[len(all)-1].ID)

	require.NoError(t, st.DeletePlaybook(ctx, saved.ID))
	_, err = st.Playbook(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrPlaybookNotFound)
}

func TestBuiltinPlaybooksAreProtected(t *testing.T) {
	st, ctx := openTestStore(t)
	builtinID := playbook.BuiltinScenarios[0].ID

	_, err := st.SavePlaybook(ctx, playbook.Playbook{ID: builtinID, Name: "hijack"})
	assert.ErrorIs(t, err, ErrBuiltInPlaybook)

	assert.ErrorIs(t, st.DeletePlaybook(ctx, builtinID), ErrBuiltInPlaybook)

	got, err := st.Playbook(ctx, builtinID)
	require.NoError(t, err)
	assert.True(t, got.BuiltIn)
}

func TestPlaybookExportImportRoundTrip(t *testing.T) {
	st, ctx := openTestStore(t)

	_, err := st.SavePlaybook(ctx, playbook.Playbook{
		Name:  "Exported",
		Steps: []playbook.Step{{ID: "a", Action: playbook.ActionClick}},
	})
	require.NoError(t, err)

	data, err := st.ExportPlaybooks(ctx)
	require.NoError(t, err)

	other, otherCtx := openTestStore(t)
	applied, err := other.ImportPlaybooks(otherCtx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	all, err := other.Playbooks(otherCtx)
	require.NoError(t, err)
	assert.Equal(t, "Exported", all[len(all)-1].Name)
}

func TestKnowledgeCRUDAndSearch(t *testing.T) {
	st, ctx := openTestStore(t)

	vpn, err := st.AddKnowledge(ctx, KnowledgeEntry{
		Title: "VPN setup", Text: "How to configure the client VPN", Tags: []string{"vpn", "network"},
	})
	require.NoError(t, err)
	_, err = st.AddKnowledge(ctx, KnowledgeEntry{
		Title: "PBX plans", Text: "Tariff overview for the PBX", Tags: []string{"pbx"},
	})
	require.NoError(t, err)

	entries, err := st.KnowledgeEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	found := SearchKnowledge(entries, "vpn network")
	require.Len(t, found, 1)
	assert.Equal(t, vpn.ID, found[0].ID)

	// More matching terms rank higher.
	ranked := SearchKnowledge(entries, "vpn pbx network")
	require.Len(t, ranked, 2)
	assert.Equal(t, vpn.ID, ranked[0].ID)

	// Empty query returns everything unranked.
	assert.Len(t, SearchKnowledge(entries, "  "), 2)

	vpn.Title = "VPN setup v2"
	require.NoError(t, st.UpdateKnowledge(ctx, *vpn))
	require.NoError(t, st.DeleteKnowledge(ctx, vpn.ID))
	assert.ErrorIs(t, st.DeleteKnowledge(ctx, vpn.ID), ErrEntryNotFound)
}

func TestTemplatePlaceholders(t *testing.T) {
	st, ctx := openTestStore(t)

	tpl, err := st.AddTemplate(ctx, Template{
		Name: "PBX done",
		Body: "Client {CLIENT_CODE}: the PBX on line {LINE_NUMBER} is connected. Ticket {TICKET_NUMBER}. {CLIENT_CODE}",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"{CLIENT_CODE}", "{LINE_NUMBER}", "{TICKET_NUMBER}"}, tpl.Placeholders)

	resolved := ResolvePlaceholders(tpl.Body, playbook.Context{
		"clientCode": "4521",
		"lineNumber": "74951112233",
	})
	assert.Equal(t,
		"Client 4521: the PBX on line 74951112233 is connected. Ticket {TICKET_NUMBER}. 4521",
		resolved)
}

func TestTemplateRecommendations(t *testing.T) {
	st, ctx := openTestStore(t)

	pbx, err := st.AddTemplate(ctx, Template{Name: "PBX reply", Body: "pbx"})
	require.NoError(t, err)
	vpn, err := st.AddTemplate(ctx, Template{Name: "VPN reply", Body: "vpn"})
	require.NoError(t, err)

	queueMeta := TicketMeta{Queue: "PBX::Connect", Keywords: []string{"pbx"}}
	require.NoError(t, st.RecordTemplateUsage(ctx, queueMeta, pbx.ID))
	require.NoError(t, st.RecordTemplateUsage(ctx, TicketMeta{Queue: "VPN"}, vpn.ID))
	require.NoError(t, st.RecordTemplateUsage(ctx, TicketMeta{Queue: "VPN"}, vpn.ID))

	// Same queue and a shared keyword outweigh raw usage counts.
	got, err := st.RecommendTemplates(ctx, queueMeta, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pbx.ID, got[0].ID)

	// No history relevance for an unknown queue ranks by past use.
	got, err = st.RecommendTemplates(ctx, TicketMeta{Queue: "Billing"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, vpn.ID, got[0].ID)
}

func TestLastNumbers(t *testing.T) {
	st, ctx := openTestStore(t)

	_, _, err := st.LastNumbers(ctx)
	assert.ErrorIs(t, err, ErrNoLastResult)

	require.NoError(t, st.SaveNumbers(ctx, []string{"74951112233", "74952223344"}))
	numbers, savedAt, err := st.LastNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"74951112233", "74952223344"}, numbers)
	assert.False(t, savedAt.IsZero())

	// A newer result replaces the stored one.
	require.NoError(t, st.SaveNumbers(ctx, []string{"74990001122"}))
	numbers, _, err = st.LastNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"74990001122"}, numbers)

	require.NoError(t, st.ClearNumbers(ctx))
	_, _, err = st.LastNumbers(ctx)
	assert.ErrorIs(t, err, ErrNoLastResult)
}
