package ports

import "github.com/pharos-rwa/pharos/core"

// Tokenizer converts between domain objects and signed tokens
type Tokenizer interface {
	// Session tokens operations
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}
