// Package memory implementa el adapter en memoria.
// Útil para desarrollo y testing. Replica la semántica condicional del
// adapter PostgreSQL: toda transición de estado verifica su precondición
// bajo el mismo lock que la aplica.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	return NewConnection(), nil
}

// Connection es una conexión en memoria. Cada Connection es un universo
// aislado; dos conexiones no comparten datos.
type Connection struct {
	mu sync.RWMutex

	users        map[string]*repository.User
	usersByEmail map[string]string

	tokens       map[string]*repository.RefreshToken
	tokensByHash map[string]string

	devices       map[string]*repository.DeviceCode
	devicesByHash map[string]string

	roles     map[string]*repository.Role
	userRoles map[string]map[string]struct{}
}

// NewConnection crea una conexión en memoria vacía.
func NewConnection() *Connection {
	return &Connection{
		users:         make(map[string]*repository.User),
		usersByEmail:  make(map[string]string),
		tokens:        make(map[string]*repository.RefreshToken),
		tokensByHash:  make(map[string]string),
		devices:       make(map[string]*repository.DeviceCode),
		devicesByHash: make(map[string]string),
		roles:         make(map[string]*repository.Role),
		userRoles:     make(map[string]map[string]struct{}),
	}
}

func (c *Connection) Name() string { return "memory" }

func (c *Connection) Ping(ctx context.Context) error { return nil }

func (c *Connection) Close() error { return nil }

// ─── Repositorios ───

func (c *Connection) Users() repository.UserRepository             { return &userRepo{c} }
func (c *Connection) Tokens() repository.TokenRepository           { return &tokenRepo{c} }
func (c *Connection) DeviceCodes() repository.DeviceCodeRepository { return &deviceCodeRepo{c} }
func (c *Connection) RBAC() repository.RBACRepository              { return &rbacRepo{c} }
