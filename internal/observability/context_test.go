package observability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpID(t *testing.T) {
	assert.Empty(t, OpID(context.Background()))

	ctx := WithOpID(context.Background())
	id, err := uuid.Parse(OpID(ctx))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())

	assert.NotEqual(t, OpID(ctx), OpID(WithOpID(context.Background())))
}
