package session

import (
	"github.com/alexedwards/scs/v2"
	"github.com/hitoshi/secrets/internal/repository"
)

// compile-time interface check
var (
	_ scs.CtxStore = (*repository.PostgresSessionRepo)(nil)
	_ scs.CtxStore = (*repository.MongoSessionRepo)(nil)
)
