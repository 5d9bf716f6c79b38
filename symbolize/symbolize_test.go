package symbolize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tableWith(names map[uint64]string) *Table {
	return &Table{names: names}
}

func TestTable_Resolve(t *testing.T) {
	tbl := tableWith(map[uint64]string{
		0x0800_4242: "app::sensors::read_adc",
	})

	name, ok := tbl.Resolve(0x0800_4242)
	require.True(t, ok)
	require.Equal(t, "app::sensors::read_adc", name)

	_, ok = tbl.Resolve(0xDEAD)
	require.False(t, ok)
}

func TestTable_HexFallbacks(t *testing.T) {
	tbl := tableWith(nil)

	require.Equal(t, "Function 0xABCD", tbl.FunctionName(0xABCD))
	require.Equal(t, "Task 0x20001234", tbl.TaskName(0x2000_1234))
	require.Equal(t, "Executor 0x20000100", tbl.ExecutorName(0x2000_0100))
}

func TestShortName_TrimsPoolSuffix(t *testing.T) {
	require.Equal(t, "app::blinker", shortName("app::blinker::POOL"))
	require.Equal(t, "app::blinker", shortName("app::blinker::POOL::get"))
	require.Equal(t, "plain_symbol", shortName("plain_symbol"))
}

func TestTable_NamedLookupsPreferSymbols(t *testing.T) {
	tbl := tableWith(map[uint64]string{
		0x100: "main_executor",
		0x200: "app::uart_task",
	})

	require.Equal(t, "main_executor", tbl.ExecutorName(0x100))
	require.Equal(t, "app::uart_task", tbl.TaskName(0x200))
	require.Equal(t, 2, tbl.Len())
}
