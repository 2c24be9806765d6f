package memory

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"graphstore/application/ports"
	"graphstore/infrastructure/persistence/repotest"
)

func TestStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) ports.Store {
		return NewStore(zaptest.NewLogger(t))
	})
}
