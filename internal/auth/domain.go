package auth

import "github.com/golang-jwt/jwt/v5"

// Roles recognised by the API.
const (
	RoleAdmin   = "admin"
	RoleSync    = "sync"
	RoleManager = "gerente"
	RoleCashier = "cajero"
)

// Claims are the custom claims carried by every bearer token.
type Claims struct {
	Role     string `json:"rol"`
	BranchID string `json:"sucursal_id,omitempty"`
	jwt.RegisteredClaims
}
