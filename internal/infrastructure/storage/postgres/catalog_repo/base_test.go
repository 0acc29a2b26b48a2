package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

func newTestRepo() *WarehouseRepo {
	return NewWarehouseRepo(nil)
}

func TestListQuery(t *testing.T) {
	repo := newTestRepo()
	ids := []id.ID{id.New()}

	tests := []struct {
		name     string
		filter   domain.ListFilter
		wantTail string
		wantArgs []any
	}{
		{
			name:     "live rows only",
			filter:   domain.ListFilter{},
			wantTail: " FROM cat_warehouses WHERE deletion_mark = $1",
			wantArgs: []any{false},
		},
		{
			name:     "search and ids with deleted",
			filter:   domain.ListFilter{Search: " main ", IDs: ids, IncludeDeleted: true},
			wantTail: " FROM cat_warehouses WHERE (name ILIKE $1 OR code ILIKE $2) AND id IN ($3)",
			wantArgs: []any{"%main%", "%main%", ids[0]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, tt.wantTail)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestParseOrderBy(t *testing.T) {
	repo := newTestRepo()

	got, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "name ASC", got)

	got, err = repo.parseOrderBy("-code")
	require.NoError(t, err)
	assert.Equal(t, "code DESC", got)

	_, err = repo.parseOrderBy("name; DROP TABLE cat_warehouses")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
