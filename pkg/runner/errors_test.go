package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "cancelled ignores cause",
			err:  &Error{Kind: KindQueryCancelled, Err: context.Canceled},
			want: "Query cancelled by user.",
		},
		{
			name: "query failed surfaces cause message",
			err:  &Error{Kind: KindQueryFailed, Err: errors.New("PARSE ERROR: Encountered \"FORM\"")},
			want: "PARSE ERROR: Encountered \"FORM\"",
		},
		{
			name: "query failed without cause",
			err:  &Error{Kind: KindQueryFailed},
			want: "query failed",
		},
		{
			name: "query failed with empty cause",
			err:  &Error{Kind: KindQueryFailed, Err: errors.New("")},
			want: "query failed",
		},
		{
			name: "server unreachable",
			err:  &Error{Kind: KindServerUnreachable, Err: errors.New("drill at localhost:8047 is not accepting requests")},
			want: "server not reachable: drill at localhost:8047 is not accepting requests",
		},
		{
			name: "schema failure keeps cause",
			err:  &Error{Kind: KindSchemaIntrospectionFailed, Err: errors.New("boom")},
			want: "Failed getting schema: boom",
		},
		{
			name: "schema failure without cause",
			err:  &Error{Kind: KindSchemaIntrospectionFailed},
			want: "Failed getting schema.",
		},
		{
			name: "configuration unavailable",
			err:  &Error{Kind: KindConfigurationUnavailable},
			want: "configuration unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := context.Canceled
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindQueryCancelled, Query: "SELECT 1", Err: cause})

	assert.True(t, errors.Is(err, ErrQueryCancelled))
	assert.False(t, errors.Is(err, ErrQueryFailed))
	assert.True(t, errors.Is(err, context.Canceled), "cause must be reachable")

	assert.True(t, IsKind(err, KindQueryCancelled))
	assert.False(t, IsKind(errors.New("plain"), KindQueryCancelled))

	assert.Equal(t, KindQueryCancelled, KindOf(err))
	assert.Equal(t, KindQueryFailed, KindOf(errors.New("plain")))
}

func TestError_NestedKinds(t *testing.T) {
	inner := &Error{Kind: KindServerUnreachable}
	outer := &Error{Kind: KindSchemaIntrospectionFailed, Err: inner}

	assert.True(t, errors.Is(outer, ErrSchemaIntrospectionFailed))
	assert.True(t, errors.Is(outer, ErrServerUnreachable), "inner kind stays visible")
	assert.Equal(t, KindSchemaIntrospectionFailed, KindOf(outer))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "server not reachable", KindServerUnreachable.String())
	assert.Equal(t, "query failed", ErrorKind(99).String())
}
