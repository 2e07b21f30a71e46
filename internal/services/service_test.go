package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	logger "github.com/Gopher0727/SignalRoom/middleware/log"

	"github.com/Gopher0727/SignalRoom/internal/store"
	"github.com/Gopher0727/SignalRoom/utils/snowflake"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	gen, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "store.json"), gen, log)
	require.NoError(t, err)
	return st
}
