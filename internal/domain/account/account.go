package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Role int

const (
	RoleUser Role = iota
	RoleExpert
	RoleManager
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleExpert:
		return "expert"
	case RoleManager:
		return "manager"
	default:
		return "unknown"
	}
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "user":
		return RoleUser, nil
	case "expert":
		return RoleExpert, nil
	case "manager":
		return RoleManager, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (u *User) IsExpert() bool  { return u.Role == RoleExpert }
func (u *User) IsManager() bool { return u.Role == RoleManager }
