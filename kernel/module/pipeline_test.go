package module_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/model/substate"
)

type recorder struct {
	module.NoopModule

	name  string
	calls *[]string
	err   error
}

func (r recorder) Name() string { return r.name }

func (r recorder) AfterCreateNode(_ module.API, id substate.NodeId) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func TestPipeline(t *testing.T) {
	id := substate.NewNodeId(substate.EntityTypeInternalGenericComponent, [substate.NodeIdRIDLength]byte{1})

	t.Run("modules run in order", func(t *testing.T) {
		var calls []string
		p := module.NewPipeline(
			recorder{name: "a", calls: &calls},
			recorder{name: "b", calls: &calls},
		)
		require.NoError(t, p.AfterCreateNode(nil, id))
		require.Equal(t, []string{"a", "b"}, calls)
	})

	t.Run("first error stops the pipeline", func(t *testing.T) {
		var calls []string
		denied := errors.NewAuthorizationDeniedError("actor", "denied")
		p := module.NewPipeline(
			recorder{name: "a", calls: &calls, err: denied},
			recorder{name: "b", calls: &calls},
		)
		err := p.AfterCreateNode(nil, id)
		require.Equal(t, denied, err)
		require.Equal(t, []string{"a"}, calls)
	})

	t.Run("uncoded errors become module errors", func(t *testing.T) {
		var calls []string
		p := module.NewPipeline(recorder{name: "a", calls: &calls, err: fmt.Errorf("boom")})
		err := p.AfterCreateNode(nil, id)
		require.True(t, errors.HasErrorCode(err, errors.ErrCodeModuleError))
		require.True(t, errors.IsModuleError(err))
	})

	t.Run("noop hooks", func(t *testing.T) {
		p := module.NewPipeline(module.NoopModule{})
		require.NoError(t, p.OnInit(nil))
		require.NoError(t, p.BeforeInvoke(nil, "call", 10))
		require.NoError(t, p.OnTeardown(nil))
	})

	t.Run("find", func(t *testing.T) {
		var calls []string
		p := module.NewPipeline(module.NoopModule{}, recorder{name: "a", calls: &calls})
		m, ok := p.Find("a")
		require.True(t, ok)
		require.Equal(t, "a", m.Name())
		_, ok = p.Find("missing")
		require.False(t, ok)
		require.Len(t, p.Modules(), 2)
	})
}
