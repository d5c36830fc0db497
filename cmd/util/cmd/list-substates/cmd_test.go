package substates

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-kernel/cmd/util/cmd/common"
	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/utils/unittest"
)

func TestListSubstates(t *testing.T) {
	kv := unittest.NodeIdFromByte(substate.EntityTypeInternalKeyValueStore, 1)
	component := unittest.NodeIdFromByte(substate.EntityTypeGlobalGenericComponent, 2)

	for _, backend := range []string{common.BackendBadger, common.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			unittest.RunWithTempDir(t, func(dir string) {
				db, closer, err := common.OpenSubstateDatabase(unittest.Logger(), backend, dir)
				require.NoError(t, err)
				updates := substate.NewStateUpdates()
				updates.Set(kv, substate.MainPartition, substate.MapKey([]byte{0xab}).DBKey(), []byte{1, 2, 3})
				updates.Set(component, substate.TypeInfoPartition, substate.TypeInfoKey.DBKey(), []byte{1})
				require.NoError(t, db.Commit(updates))
				require.NoError(t, closer.Close())

				run := func(args ...string) []string {
					var out bytes.Buffer
					flagNodeID = ""
					Cmd.SetOut(&out)
					Cmd.SetArgs(append([]string{"--data-dir", dir, "--backend", backend}, args...))
					require.NoError(t, Cmd.Execute())
					return strings.Split(strings.TrimSpace(out.String()), "\n")
				}

				lines := run()
				require.Equal(t, []string{
					component.Hex() + " 0 field(0) 1",
					kv.Hex() + " 64 map(ab) 3",
				}, lines)

				lines = run("--node", kv.Hex())
				require.Equal(t, []string{kv.Hex() + " 64 map(ab) 3"}, lines)
			})
		})
	}

	t.Run("invalid backend", func(t *testing.T) {
		_, _, err := common.OpenSubstateDatabase(unittest.Logger(), "leveldb", unittest.TempDir(t))
		require.Error(t, err)
	})
}
