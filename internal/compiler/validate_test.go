package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwalk/chatwalk/internal/compiler"
	"github.com/chatwalk/chatwalk/pkg/domain"
)

func validGraph() *domain.Graph {
	return &domain.Graph{
		ID: "g",
		Groups: []domain.Group{
			{ID: "a", Blocks: []domain.Block{
				{ID: "b1", Type: domain.BlockText},
				{ID: "b2", Type: domain.BlockCondition, Options: map[string]any{"expression": "x"}},
			}},
			{ID: "b", Blocks: []domain.Block{
				{ID: "b3", Type: domain.BlockText},
			}},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: domain.EdgeSource{GroupID: "a", BlockID: "b2", Label: "true"}, To: domain.EdgeTarget{GroupID: "b"}},
			{ID: "e2", From: domain.EdgeSource{GroupID: "a", BlockID: "b2", Label: "false"}, To: domain.EdgeTarget{GroupID: "b"}},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid Graph", func(t *testing.T) {
		assert.NoError(t, compiler.Validate(validGraph()))
	})

	t.Run("No Groups", func(t *testing.T) {
		err := compiler.Validate(&domain.Graph{ID: "empty"})
		var gErr *domain.GraphIntegrityError
		require.ErrorAs(t, err, &gErr)
	})

	t.Run("Duplicate Group ID", func(t *testing.T) {
		g := validGraph()
		g.Groups = append(g.Groups, domain.Group{ID: "a"})
		assertIntegrityError(t, g, "duplicate group id")
	})

	t.Run("Duplicate Block ID Across Groups", func(t *testing.T) {
		g := validGraph()
		g.Groups[1].Blocks = append(g.Groups[1].Blocks, domain.Block{ID: "b1", Type: domain.BlockText})
		assertIntegrityError(t, g, "duplicate block id")
	})

	t.Run("Unknown Block Type", func(t *testing.T) {
		g := validGraph()
		g.Groups[0].Blocks[0].Type = "hologram"
		assertIntegrityError(t, g, "unknown block type")
	})

	t.Run("Edge From Unknown Group", func(t *testing.T) {
		g := validGraph()
		g.Edges = append(g.Edges, domain.Edge{ID: "e3", From: domain.EdgeSource{GroupID: "ghost"}, To: domain.EdgeTarget{GroupID: "b"}})
		assertIntegrityError(t, g, "unknown group")
	})

	t.Run("Edge From Block In Wrong Group", func(t *testing.T) {
		g := validGraph()
		// b3 exists, but inside group "b", not "a".
		g.Edges = append(g.Edges, domain.Edge{ID: "e3", From: domain.EdgeSource{GroupID: "a", BlockID: "b3"}, To: domain.EdgeTarget{GroupID: "b"}})
		assertIntegrityError(t, g, "unknown block")
	})

	t.Run("Edge To Unknown Target Block", func(t *testing.T) {
		g := validGraph()
		g.Edges = append(g.Edges, domain.Edge{ID: "e3", From: domain.EdgeSource{GroupID: "b", BlockID: "b3"}, To: domain.EdgeTarget{GroupID: "a", BlockID: "nope"}})
		assertIntegrityError(t, g, "targets unknown block")
	})

	t.Run("Duplicate Branch Label", func(t *testing.T) {
		g := validGraph()
		g.Edges = append(g.Edges, domain.Edge{ID: "e3", From: domain.EdgeSource{GroupID: "a", BlockID: "b2", Label: "true"}, To: domain.EdgeTarget{GroupID: "a"}})
		assertIntegrityError(t, g, "duplicate branch label")
	})

	t.Run("Multiple Default Edges", func(t *testing.T) {
		g := validGraph()
		g.Edges = append(g.Edges,
			domain.Edge{ID: "e3", From: domain.EdgeSource{GroupID: "b", BlockID: "b3"}, To: domain.EdgeTarget{GroupID: "a"}},
			domain.Edge{ID: "e4", From: domain.EdgeSource{GroupID: "b", BlockID: "b3"}, To: domain.EdgeTarget{GroupID: "b"}},
		)
		assertIntegrityError(t, g, "multiple default edges")
	})

	t.Run("Event Targets Unknown Group", func(t *testing.T) {
		g := validGraph()
		g.Events = []domain.Event{{ID: "ev", Type: domain.EventStart, Target: domain.EdgeTarget{GroupID: "ghost"}}}
		assertIntegrityError(t, g, "targets unknown group")
	})

	t.Run("Unknown Event Type", func(t *testing.T) {
		g := validGraph()
		g.Events = []domain.Event{{ID: "ev", Type: "alarm", Target: domain.EdgeTarget{GroupID: "a"}}}
		assertIntegrityError(t, g, "unknown type")
	})

	t.Run("Duplicate Variable Declaration", func(t *testing.T) {
		g := validGraph()
		g.Variables = []domain.Variable{{Name: "email"}, {Name: "email"}}
		assertIntegrityError(t, g, "duplicate variable")
	})

	t.Run("Reserved Variable Declaration", func(t *testing.T) {
		g := validGraph()
		g.Variables = []domain.Variable{{Name: "statusCode"}}
		assertIntegrityError(t, g, "reserved")
	})

	t.Run("Block Binds Reserved Variable", func(t *testing.T) {
		g := validGraph()
		g.Groups[1].Blocks = append(g.Groups[1].Blocks, domain.Block{
			ID:      "b4",
			Type:    domain.BlockTextInput,
			Options: map[string]any{"variable": "statusCode"},
		})
		assertIntegrityError(t, g, "reserved")
	})
}

func assertIntegrityError(t *testing.T, g *domain.Graph, substr string) {
	t.Helper()
	err := compiler.Validate(g)
	var gErr *domain.GraphIntegrityError
	require.ErrorAs(t, err, &gErr)
	assert.Contains(t, err.Error(), substr)
}

func TestParse(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		data := []byte(`{
			"id": "hello",
			"groups": [
				{"id": "g1", "blocks": [{"id": "b1", "type": "text", "content": {"markdown": "Hi"}}]}
			]
		}`)
		g, err := compiler.ParseJSON(data)
		require.NoError(t, err)
		assert.Equal(t, "hello", g.ID)
		require.Len(t, g.Groups, 1)
		assert.Equal(t, domain.BlockText, g.Groups[0].Blocks[0].Type)
	})

	t.Run("YAML", func(t *testing.T) {
		data := []byte(`
id: hello
groups:
  - id: g1
    blocks:
      - id: b1
        type: email input
        options:
          variable: email
`)
		g, err := compiler.ParseYAML(data)
		require.NoError(t, err)
		require.Len(t, g.Groups, 1)
		assert.Equal(t, domain.BlockEmailInput, g.Groups[0].Blocks[0].Type)
		assert.Equal(t, "email", g.Groups[0].Blocks[0].VariableName())
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		_, err := compiler.ParseJSON([]byte(`{nope`))
		assert.Error(t, err)
	})

	t.Run("Structurally Broken Graph Is Rejected", func(t *testing.T) {
		_, err := compiler.ParseJSON([]byte(`{"id": "x", "groups": []}`))
		var gErr *domain.GraphIntegrityError
		require.ErrorAs(t, err, &gErr)
	})
}
